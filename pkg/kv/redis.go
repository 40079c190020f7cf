package kv

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*Redis)(nil)

// Redis is a Store backed by a Redis server, shared by every process that
// points at it. Keys are stored verbatim in their encoded form.
type Redis struct {
	client redis.UniversalClient
	opts   *Options
	owned  bool
}

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Options *Options

	// Client, if set, is used as is and not closed by Close.
	Client redis.UniversalClient

	// URL is a redis:// URL used when Client is nil.
	URL string
}

// NewRedis connects to Redis.
func NewRedis(ropts RedisOptions) (*Redis, error) {
	if ropts.Client != nil {
		return &Redis{client: ropts.Client, opts: ropts.Options}, nil
	}
	if ropts.URL == "" {
		return nil, errors.New("kv: RedisOptions.URL or Client is required")
	}
	opt, err := redis.ParseURL(ropts.URL)
	if err != nil {
		return nil, err
	}
	return &Redis{client: redis.NewClient(opt), opts: ropts.Options, owned: true}, nil
}

func (r *Redis) Get(ctx context.Context, key Key) ([]byte, error) {
	k, err := r.opts.encode(key)
	if err != nil {
		return nil, err
	}
	v, err := r.client.Get(ctx, string(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return v, err
}

func (r *Redis) Set(ctx context.Context, key Key, value []byte) error {
	k, err := r.opts.encode(key)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, string(k), value, 0).Err()
}

func (r *Redis) Delete(ctx context.Context, key Key) error {
	k, err := r.opts.encode(key)
	if err != nil {
		return err
	}
	return r.client.Del(ctx, string(k)).Err()
}

// globEscaper quotes the characters SCAN MATCH treats as patterns.
var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// List scans the matching keys, sorts them, then fetches values in MGET
// batches. Keys deleted between the scan and the fetch are skipped.
func (r *Redis) List(ctx context.Context, prefix Key) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		p, err := r.opts.scan(prefix)
		if err != nil {
			yield(Entry{}, err)
			return
		}
		match := globEscaper.Replace(string(p)) + "*"
		var keys []string
		it := r.client.Scan(ctx, 0, match, 256).Iterator()
		for it.Next(ctx) {
			keys = append(keys, it.Val())
		}
		if err := it.Err(); err != nil {
			yield(Entry{}, err)
			return
		}
		slices.Sort(keys)
		keys = slices.Compact(keys)

		const batch = 128
		for len(keys) > 0 {
			n := min(batch, len(keys))
			chunk := keys[:n]
			keys = keys[n:]
			vals, err := r.client.MGet(ctx, chunk...).Result()
			if err != nil {
				yield(Entry{}, err)
				return
			}
			for i, v := range vals {
				s, ok := v.(string)
				if !ok {
					continue
				}
				if !yield(Entry{Key: r.opts.decode([]byte(chunk[i])), Value: []byte(s)}, nil) {
					return
				}
			}
		}
	}
}

// BatchSet writes all entries in one MULTI/EXEC transaction.
func (r *Redis) BatchSet(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	ks := make([]string, len(entries))
	for i, e := range entries {
		k, err := r.opts.encode(e.Key)
		if err != nil {
			return err
		}
		ks[i] = string(k)
	}
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for i, e := range entries {
			p.Set(ctx, ks[i], e.Value, 0)
		}
		return nil
	})
	return err
}

func (r *Redis) BatchDelete(ctx context.Context, keys []Key) error {
	if len(keys) == 0 {
		return nil
	}
	ks := make([]string, len(keys))
	for i, key := range keys {
		k, err := r.opts.encode(key)
		if err != nil {
			return err
		}
		ks[i] = string(k)
	}
	return r.client.Del(ctx, ks...).Err()
}

// Close closes the client if NewRedis created it.
func (r *Redis) Close() error {
	if r.owned {
		return r.client.Close()
	}
	return nil
}

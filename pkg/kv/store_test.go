package kv_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/haivivi/cookguide/pkg/kv"
	"github.com/redis/go-redis/v9"
)

type backend struct {
	name string
	open func(t *testing.T, opts *kv.Options) kv.Store
}

var backends = []backend{
	{"memory", func(t *testing.T, opts *kv.Options) kv.Store {
		s := kv.NewMemory(opts)
		t.Cleanup(func() { s.Close() })
		return s
	}},
	{"badger", func(t *testing.T, opts *kv.Options) kv.Store {
		s, err := kv.NewBadger(kv.BadgerOptions{Options: opts, InMemory: true})
		if err != nil {
			t.Fatalf("NewBadger: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}},
	{"redis", func(t *testing.T, opts *kv.Options) kv.Store {
		mr := miniredis.RunT(t)
		s, err := kv.NewRedis(kv.RedisOptions{Options: opts, URL: "redis://" + mr.Addr()})
		if err != nil {
			t.Fatalf("NewRedis: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

func forEachBackend(t *testing.T, f func(t *testing.T, open func(*kv.Options) kv.Store)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			f(t, func(opts *kv.Options) kv.Store { return b.open(t, opts) })
		})
	}
}

func listKeys(t *testing.T, s kv.Store, prefix kv.Key) []string {
	t.Helper()
	var got []string
	for e, err := range s.List(context.Background(), prefix) {
		if err != nil {
			t.Fatalf("List(%v): %v", prefix, err)
		}
		got = append(got, e.Key.String()+"="+string(e.Value))
	}
	return got
}

func TestGetSetDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(*kv.Options) kv.Store) {
		ctx := context.Background()
		s := open(nil)
		key := kv.Key{"cg", "s1", "mem", "0000000001"}

		if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("Get missing = %v, want ErrNotFound", err)
		}
		if err := s.Set(ctx, key, []byte("hello")); err != nil {
			t.Fatal(err)
		}
		got, err := s.Get(ctx, key)
		if err != nil || string(got) != "hello" {
			t.Fatalf("Get = %q, %v", got, err)
		}
		if err := s.Set(ctx, key, []byte("world")); err != nil {
			t.Fatal(err)
		}
		if got, _ := s.Get(ctx, key); string(got) != "world" {
			t.Fatalf("Get after overwrite = %q", got)
		}
		if err := s.Delete(ctx, key); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("Get deleted = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, key); err != nil {
			t.Fatalf("Delete missing = %v, want nil", err)
		}
	})
}

func TestList(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(*kv.Options) kv.Store) {
		s := open(nil)
		entries := []kv.Entry{
			{Key: kv.Key{"cg", "s1", "mem", "0000000002"}, Value: []byte("b")},
			{Key: kv.Key{"cg", "s1", "mem", "0000000001"}, Value: []byte("a")},
			{Key: kv.Key{"cg", "s1", "meta"}, Value: []byte("m")},
			{Key: kv.Key{"cg", "s10", "mem", "0000000001"}, Value: []byte("x")},
			{Key: kv.Key{"other"}, Value: []byte("o")},
		}
		if err := s.BatchSet(context.Background(), entries); err != nil {
			t.Fatal(err)
		}

		want := []string{"cg:s1:mem:0000000001=a", "cg:s1:mem:0000000002=b"}
		if got := listKeys(t, s, kv.Key{"cg", "s1", "mem"}); !slices.Equal(got, want) {
			t.Fatalf("List(cg:s1:mem) = %v, want %v", got, want)
		}
		if got := listKeys(t, s, kv.Key{"cg", "s1"}); len(got) != 3 {
			t.Fatalf("List(cg:s1) = %v, want 3 entries", got)
		}
		if got := listKeys(t, s, nil); len(got) != 5 {
			t.Fatalf("List(nil) = %v, want 5 entries", got)
		}
	})
}

func TestListEarlyStop(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(*kv.Options) kv.Store) {
		ctx := context.Background()
		s := open(nil)
		for _, k := range []string{"1", "2", "3"} {
			s.Set(ctx, kv.Key{"p", k}, []byte(k))
		}
		n := 0
		for range s.List(ctx, kv.Key{"p"}) {
			n++
			if n == 2 {
				break
			}
		}
		if n != 2 {
			t.Fatalf("iterated %d entries, want 2", n)
		}
	})
}

func TestBatchDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(*kv.Options) kv.Store) {
		ctx := context.Background()
		s := open(nil)
		s.BatchSet(ctx, []kv.Entry{
			{Key: kv.Key{"a", "1"}, Value: []byte("v1")},
			{Key: kv.Key{"a", "2"}, Value: []byte("v2")},
			{Key: kv.Key{"a", "3"}, Value: []byte("v3")},
		})
		if err := s.BatchDelete(ctx, []kv.Key{{"a", "1"}, {"a", "2"}}); err != nil {
			t.Fatal(err)
		}
		if got := listKeys(t, s, kv.Key{"a"}); !slices.Equal(got, []string{"a:3=v3"}) {
			t.Fatalf("after BatchDelete = %v", got)
		}
		if err := s.BatchDelete(ctx, nil); err != nil {
			t.Fatalf("BatchDelete(nil) = %v", err)
		}
	})
}

func TestCustomSeparator(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(*kv.Options) kv.Store) {
		s := open(&kv.Options{Separator: '/'})
		if err := s.Set(context.Background(), kv.Key{"path", "to", "value"}, []byte("data")); err != nil {
			t.Fatal(err)
		}
		if got := listKeys(t, s, kv.Key{"path", "to"}); !slices.Equal(got, []string{"path:to:value=data"}) {
			t.Fatalf("List = %v", got)
		}
	})
}

func TestValueIsolation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(*kv.Options) kv.Store) {
		ctx := context.Background()
		s := open(nil)
		key := kv.Key{"iso"}
		original := []byte("original")
		s.Set(ctx, key, original)
		original[0] = 'X'
		got, _ := s.Get(ctx, key)
		if got[0] != 'o' {
			t.Fatal("store value was mutated via original slice")
		}
		got[0] = 'Y'
		if again, _ := s.Get(ctx, key); again[0] != 'o' {
			t.Fatal("store value was mutated via returned slice")
		}
	})
}

func TestInvalidKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open func(*kv.Options) kv.Store) {
		ctx := context.Background()
		s := open(nil)
		bad := kv.Key{"cg", "kitchen:1", "mem"}

		if _, err := s.Get(ctx, bad); !errors.Is(err, kv.ErrInvalidKey) {
			t.Errorf("Get() error = %v", err)
		}
		if err := s.Set(ctx, bad, []byte("v")); !errors.Is(err, kv.ErrInvalidKey) {
			t.Errorf("Set() error = %v", err)
		}
		if err := s.Delete(ctx, bad); !errors.Is(err, kv.ErrInvalidKey) {
			t.Errorf("Delete() error = %v", err)
		}
		for _, err := range s.List(ctx, bad) {
			if !errors.Is(err, kv.ErrInvalidKey) {
				t.Errorf("List() error = %v", err)
			}
		}
		good := kv.Key{"cg", "ok"}
		if err := s.BatchSet(ctx, []kv.Entry{{Key: good, Value: []byte("v")}, {Key: bad}}); !errors.Is(err, kv.ErrInvalidKey) {
			t.Errorf("BatchSet() error = %v", err)
		}
		if _, err := s.Get(ctx, good); !errors.Is(err, kv.ErrNotFound) {
			t.Errorf("BatchSet() with an invalid key stored the valid one: %v", err)
		}
		if err := s.BatchDelete(ctx, []kv.Key{good, bad}); !errors.Is(err, kv.ErrInvalidKey) {
			t.Errorf("BatchDelete() error = %v", err)
		}
	})
}

func TestBadgerDirRequired(t *testing.T) {
	_, err := kv.NewBadger(kv.BadgerOptions{})
	if err == nil || !strings.Contains(err.Error(), "Dir is required") {
		t.Fatalf("NewBadger() error = %v", err)
	}
}

func TestRedisOptions(t *testing.T) {
	if _, err := kv.NewRedis(kv.RedisOptions{}); err == nil {
		t.Fatal("expected error without URL or Client")
	}
	if _, err := kv.NewRedis(kv.RedisOptions{URL: "http://nope"}); err == nil {
		t.Fatal("expected error for non-redis URL")
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s, err := kv.NewRedis(kv.RedisOptions{Client: client})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("Close() closed a caller-owned client: %v", err)
	}
	client.Close()
}

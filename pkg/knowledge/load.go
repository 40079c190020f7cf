package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/haivivi/cookguide/pkg/storage"
)

// maxDocumentSize bounds documents fetched over HTTP.
const maxDocumentSize = 32 << 20

// Loader fetches knowledge documents from a file path, an http(s) URL or an
// s3://bucket/key object.
type Loader struct {
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// S3 opens a FileStore for a bucket. s3:// sources fail without it.
	S3 func(bucket string) (storage.FileStore, error)
}

// Load fetches and validates the document at src.
func (l *Loader) Load(ctx context.Context, src string) (*VideoKnowledge, error) {
	data, err := l.fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	vk, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	return vk, nil
}

// Load uses a zero Loader.
func Load(ctx context.Context, src string) (*VideoKnowledge, error) {
	return (&Loader{}).Load(ctx, src)
}

func (l *Loader) fetch(ctx context.Context, src string) ([]byte, error) {
	loc, err := storage.ParseLocation(src)
	if err != nil {
		return nil, err
	}
	switch loc.Scheme {
	case "file":
		b, err := os.ReadFile(loc.Path)
		if err != nil {
			return nil, fmt.Errorf("knowledge: %w", err)
		}
		return b, nil
	case "http", "https":
		return l.fetchHTTP(ctx, loc.URL)
	case "s3":
		if l.S3 == nil {
			return nil, fmt.Errorf("knowledge: %s: no s3 storage configured", src)
		}
		fs, err := l.S3(loc.Bucket)
		if err != nil {
			return nil, fmt.Errorf("knowledge: %s: %w", src, err)
		}
		b, err := storage.ReadFile(ctx, fs, loc.Path)
		if err != nil {
			return nil, fmt.Errorf("knowledge: %s: %w", src, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("knowledge: unsupported source %s", src)
}

func (l *Loader) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("knowledge: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("knowledge: fetch %s: %s", url, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
}

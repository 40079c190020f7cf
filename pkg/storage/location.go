package storage

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Location is a parsed file reference: a local path, an http(s) URL or an
// s3://bucket/key object.
type Location struct {
	Scheme string
	Bucket string
	Path   string
	URL    string
}

// ParseLocation classifies raw. Plain paths and file:// URLs are local.
func ParseLocation(raw string) (Location, error) {
	if raw == "" {
		return Location{}, fmt.Errorf("storage: empty location")
	}
	if !strings.Contains(raw, "://") {
		return Location{Scheme: "file", Path: raw}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("storage: parse %q: %w", raw, err)
	}
	switch u.Scheme {
	case "file":
		return Location{Scheme: "file", Path: u.Path}, nil
	case "http", "https":
		return Location{Scheme: u.Scheme, URL: raw}, nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("storage: %q: want s3://bucket/key", raw)
		}
		return Location{Scheme: "s3", Bucket: u.Host, Path: path.Clean(key)}, nil
	}
	return Location{}, fmt.Errorf("storage: unsupported scheme %q", u.Scheme)
}

func (l Location) String() string {
	switch l.Scheme {
	case "s3":
		return "s3://" + l.Bucket + "/" + l.Path
	case "http", "https":
		return l.URL
	}
	return l.Path
}

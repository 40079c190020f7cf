package knowledge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/haivivi/cookguide/pkg/storage"
)

const sampleDoc = `[
  {"index": 0, "segment": [0, 4000], "video_transcript": "Dice the onion.",
   "procedure_description": "Dice one onion", "video_clip_description": "A knife dicing an onion",
   "environment_sound_description": "chopping"},
  {"index": 1, "segment": [4000, 9000], "video_transcript": "Heat the oil.",
   "procedure_description": "Heat oil in a pan", "video_clip_description": "Oil shimmering in a pan",
   "environment_sound_description": "sizzling"},
  {"index": 2, "segment": [9000, 15000], "video_transcript": "Add the onion.",
   "procedure_description": "Saute the onion", "video_clip_description": "Onion turning golden",
   "environment_sound_description": "sizzling"}
]`

func mustParse(t *testing.T) *VideoKnowledge {
	t.Helper()
	vk, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return vk
}

func TestParse(t *testing.T) {
	vk := mustParse(t)
	if vk.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", vk.Len())
	}
	s, ok := vk.Segment(1)
	if !ok {
		t.Fatal("Segment(1) not found")
	}
	if s.VideoTranscript != "Heat the oil." || s.Start() != 4000 || s.End() != 9000 {
		t.Fatalf("Segment(1) = %+v", s)
	}
	if vk.Has(7) {
		t.Fatal("Has(7) = true")
	}
}

func TestSegmentAt(t *testing.T) {
	vk := mustParse(t)
	tests := []struct {
		ms    int64
		index int
		ok    bool
	}{
		{0, 0, true},
		{3999, 0, true},
		{4000, 0, true},
		{4001, 1, true},
		{15000, 2, true},
		{15001, 0, false},
		{-1, 0, false},
	}
	for _, tt := range tests {
		s, ok := vk.SegmentAt(tt.ms)
		if ok != tt.ok || (ok && s.Index != tt.index) {
			t.Errorf("SegmentAt(%d) = %d, %v; want %d, %v", tt.ms, s.Index, ok, tt.index, tt.ok)
		}
	}
}

func TestFilter(t *testing.T) {
	vk := mustParse(t)
	got := vk.Filter([]int{2, 9, 0, 2, -1})
	if fmt.Sprint(got) != "[2 0]" {
		t.Fatalf("Filter() = %v, want [2 0]", got)
	}
	if got := vk.Filter(nil); got == nil || len(got) != 0 {
		t.Fatalf("Filter(nil) = %#v, want empty", got)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		segs []Segment
	}{
		{"empty", nil},
		{"inverted span", []Segment{{Index: 0, Span: [2]int64{10, 5}}}},
		{"negative start", []Segment{{Index: 0, Span: [2]int64{-5, 5}}}},
		{"duplicate", []Segment{{Index: 0}, {Index: 0}}},
		{"out of order", []Segment{{Index: 1}, {Index: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.segs); !errors.Is(err, ErrInvalid) {
				t.Fatalf("New() error = %v, want ErrInvalid", err)
			}
		})
	}
	if _, err := Parse([]byte(`{"index": 0}`)); err == nil {
		t.Fatal("Parse(object) should fail")
	}
}

func TestQuery(t *testing.T) {
	vk := mustParse(t)
	ctx := context.Background()

	got, err := vk.Query(ctx, `.[] | select(.environment_sound_description == "sizzling") | .index`)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if fmt.Sprint(got) != "[1 2]" {
		t.Fatalf("Query() = %v, want [1 2]", got)
	}

	got, err = vk.Query(ctx, `length`)
	if err != nil || len(got) != 1 || got[0] != 3 {
		t.Fatalf("Query(length) = %v, %v", got, err)
	}

	if _, err := vk.Query(ctx, `.[`); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := vk.Query(ctx, `error("boom")`); err == nil {
		t.Fatal("expected runtime error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	if err := os.WriteFile(path, []byte(sampleDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	vk, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if vk.Len() != 3 {
		t.Fatalf("Len() = %d", vk.Len())
	}
	if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.json":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, sampleDoc)
		case "/bad.json":
			fmt.Fprint(w, `[{"index": 0, "segment": [5, 1]}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := &Loader{HTTPClient: srv.Client()}
	ctx := context.Background()
	vk, err := l.Load(ctx, srv.URL+"/ok.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if vk.Len() != 3 {
		t.Fatalf("Len() = %d", vk.Len())
	}
	if _, err := l.Load(ctx, srv.URL+"/missing.json"); err == nil {
		t.Fatal("expected error on 404")
	}
	if _, err := l.Load(ctx, srv.URL+"/bad.json"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Load(bad) error = %v, want ErrInvalid", err)
	}
}

func TestLoadS3(t *testing.T) {
	dir := t.TempDir()
	local, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := os.MkdirAll(filepath.Join(dir, "recipes"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "recipes", "onion.json"), []byte(sampleDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	var gotBucket string
	l := &Loader{S3: func(bucket string) (storage.FileStore, error) {
		gotBucket = bucket
		return local, nil
	}}
	vk, err := l.Load(ctx, "s3://kitchen/recipes/onion.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if gotBucket != "kitchen" || vk.Len() != 3 {
		t.Fatalf("bucket = %q, len = %d", gotBucket, vk.Len())
	}

	if _, err := (&Loader{}).Load(ctx, "s3://kitchen/recipes/onion.json"); err == nil {
		t.Fatal("expected error without s3 opener")
	}
	if _, err := Load(ctx, "ftp://host/file.json"); err == nil {
		t.Fatal("expected unsupported scheme error")
	}
}

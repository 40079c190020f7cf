package storage

import "testing"

func TestParseLocation(t *testing.T) {
	tests := []struct {
		raw     string
		want    Location
		wantErr bool
	}{
		{raw: "data/knowledge.json", want: Location{Scheme: "file", Path: "data/knowledge.json"}},
		{raw: "file:///tmp/k.json", want: Location{Scheme: "file", Path: "/tmp/k.json"}},
		{raw: "https://example.com/k.json", want: Location{Scheme: "https", URL: "https://example.com/k.json"}},
		{raw: "s3://recipes/pasta/knowledge.json", want: Location{Scheme: "s3", Bucket: "recipes", Path: "pasta/knowledge.json"}},
		{raw: "s3://recipes/", wantErr: true},
		{raw: "ftp://x/y", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLocation(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLocation(%q) expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLocation(%q) error = %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLocation(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
	if s := (Location{Scheme: "s3", Bucket: "b", Path: "k"}).String(); s != "s3://b/k" {
		t.Errorf("String() = %q", s)
	}
}

func TestNewS3FromConfig(t *testing.T) {
	if _, err := NewS3FromConfig(S3Config{}); err == nil {
		t.Fatal("expected error without bucket")
	}
	s, err := NewS3FromConfig(S3Config{Bucket: "b", Endpoint: "http://localhost:9000", PathStyle: true, AccessKeyID: "k", SecretAccessKey: "s"})
	if err != nil {
		t.Fatal(err)
	}
	if s.bucket != "b" {
		t.Fatalf("bucket = %q", s.bucket)
	}
}

package assets

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vango-dev/splitroute/internal/errors"
)

type fakeS3 struct {
	objects map[string]string
	failAll error
	keys    []string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.keys = append(f.keys, *in.Bucket+"/"+*in.Key)
	if f.failAll != nil {
		return nil, f.failAll
	}
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte(data)))}, nil
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "pages"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pages", "about.html"), []byte("about"), 0o644); err != nil {
		t.Fatal(err)
	}
	src := DirSource{Root: dir}

	data, err := src.ReadFile(context.Background(), "pages/about.html")
	if err != nil || string(data) != "about" {
		t.Fatalf("ReadFile() = %q, %v", data, err)
	}
	if _, err := src.ReadFile(context.Background(), "/pages/about.html"); err != nil {
		t.Errorf("leading slash should be accepted: %v", err)
	}

	_, err = src.ReadFile(context.Background(), "pages/missing.html")
	if !stderrors.Is(err, ErrNotFound) || errors.Code(err) != "E200" {
		t.Errorf("missing file error = %v", err)
	}

	for _, bad := range []string{"", "../secret", "pages/../../x", `pages\about.html`} {
		if _, err := src.ReadFile(context.Background(), bad); err == nil {
			t.Errorf("ReadFile(%q) should fail", bad)
		}
	}
}

func TestMapSource(t *testing.T) {
	src := NewMapSource(map[string]string{"a.html": "A"})
	src.Set("b.html", "B")

	for name, want := range map[string]string{"a.html": "A", "b.html": "B"} {
		data, err := src.ReadFile(context.Background(), name)
		if err != nil || string(data) != want {
			t.Errorf("ReadFile(%q) = %q, %v", name, data, err)
		}
	}
	if _, err := src.ReadFile(context.Background(), "c.html"); !stderrors.Is(err, ErrNotFound) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestS3Source(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"site/pages/about.html": "from s3"}}
	src := NewS3Source(client, "assets-bucket", "site")

	data, err := src.ReadFile(context.Background(), "pages/about.html")
	if err != nil || string(data) != "from s3" {
		t.Fatalf("ReadFile() = %q, %v", data, err)
	}
	if client.keys[0] != "assets-bucket/site/pages/about.html" {
		t.Errorf("requested key = %q", client.keys[0])
	}

	if _, err := src.ReadFile(context.Background(), "pages/none.html"); !stderrors.Is(err, ErrNotFound) {
		t.Errorf("NoSuchKey should map to ErrNotFound, got %v", err)
	}

	client.failAll = stderrors.New("connection reset")
	_, err = src.ReadFile(context.Background(), "pages/about.html")
	if err == nil || stderrors.Is(err, ErrNotFound) {
		t.Errorf("transport errors should not be ErrNotFound: %v", err)
	}
}

func TestNewS3Client(t *testing.T) {
	c := NewS3Client(S3Config{Region: "us-east-1", Endpoint: "http://localhost:9000"})
	opts := c.Options()
	if opts.Region != "us-east-1" || !opts.UsePathStyle || opts.BaseEndpoint == nil || *opts.BaseEndpoint != "http://localhost:9000" {
		t.Errorf("unexpected client options: region=%q pathStyle=%v", opts.Region, opts.UsePathStyle)
	}
}

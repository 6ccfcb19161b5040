package assets

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vango-dev/splitroute/internal/errors"
)

// ErrNotFound is returned when an asset does not exist.
var ErrNotFound = stderrors.New("assets: not found")

// Source reads named assets, such as page templates and manifests.
type Source interface {
	ReadFile(ctx context.Context, name string) ([]byte, error)
}

// cleanName validates an asset name and returns it in slash form without a
// leading slash.
func cleanName(name string) (string, error) {
	if name == "" || strings.Contains(name, "\\") || strings.Contains(name, "\x00") {
		return "", fmt.Errorf("assets: invalid name %q", name)
	}
	cleaned := path.Clean("/" + name)
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", fmt.Errorf("assets: name %q escapes the source root", name)
		}
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}

// DirSource reads assets from a local directory.
type DirSource struct {
	Root string
}

// ReadFile implements Source.
func (d DirSource) ReadFile(_ context.Context, name string) ([]byte, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(d.Root, filepath.FromSlash(clean)))
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, notFound(name, err)
	}
	return data, err
}

// MapSource serves assets from memory.
type MapSource struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMapSource creates a source holding files.
func NewMapSource(files map[string]string) *MapSource {
	m := &MapSource{files: make(map[string][]byte, len(files))}
	for name, data := range files {
		m.files[name] = []byte(data)
	}
	return m
}

// Set adds or replaces a file.
func (m *MapSource) Set(name, data string) {
	m.mu.Lock()
	m.files[name] = []byte(data)
	m.mu.Unlock()
}

// ReadFile implements Source.
func (m *MapSource) ReadFile(_ context.Context, name string) ([]byte, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[clean]
	if !ok {
		return nil, notFound(name, nil)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads assets from an S3 bucket.
type S3Source struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Source creates a source reading keys under prefix in bucket.
func NewS3Source(client S3API, bucket, prefix string) *S3Source {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// ReadFile implements Source.
func (s *S3Source) ReadFile(ctx context.Context, name string) ([]byte, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + clean),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if stderrors.As(err, &nsk) {
			return nil, notFound(name, err)
		}
		return nil, fmt.Errorf("s3 get %s/%s: %w", s.bucket, s.prefix+clean, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// S3Config holds the connection settings for NewS3Client.
type S3Config struct {
	Region   string
	Endpoint string
}

// NewS3Client creates an S3 client. Credentials come from the standard
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN variables.
// A custom endpoint switches to path-style addressing.
func NewS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: envCredentials(),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

func envCredentials() aws.CredentialsProvider {
	return aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		id := os.Getenv("AWS_ACCESS_KEY_ID")
		secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
		if id == "" || secret == "" {
			return aws.Credentials{}, stderrors.New("assets: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
		}
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}, nil
	}))
}

func notFound(name string, cause error) error {
	err := errors.New("E200").WithDetail(fmt.Sprintf("asset %q does not exist", name))
	if cause != nil {
		return err.Wrap(stderrors.Join(ErrNotFound, cause))
	}
	return err.Wrap(ErrNotFound)
}

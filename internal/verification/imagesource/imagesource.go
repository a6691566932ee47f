// Package imagesource loads images for batch verification from the local
// filesystem or from Cloud Storage (gs://bucket/object).
package imagesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"cloud.google.com/go/storage"

	"docverify/internal/verification/pipeline"
)

// ReadLimit is one byte past the pipeline ceiling so oversize images are
// still reported by the pipeline's load stage.
const ReadLimit = pipeline.MaxImageBytes + 1

const gcsScheme = "gs://"

// ErrInvalidLocation is returned for malformed gs:// locations.
var ErrInvalidLocation = errors.New("invalid image location")

// Image is a loaded image and the name it is reported under.
type Image struct {
	Location string
	Name     string
	Data     []byte
}

// Loader resolves locations to image bytes. The storage client is created
// on first use of a gs:// location. Safe for concurrent use.
type Loader struct {
	newClient func(ctx context.Context) (*storage.Client, error)

	mu     sync.Mutex
	client *storage.Client
}

// Option configures the Loader.
type Option func(*Loader)

// WithStorageClient reuses an existing Cloud Storage client.
func WithStorageClient(c *storage.Client) Option {
	return func(l *Loader) { l.client = c }
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		newClient: func(ctx context.Context) (*storage.Client, error) {
			return storage.NewClient(ctx)
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads at most ReadLimit bytes from location.
func (l *Loader) Load(ctx context.Context, location string) (Image, error) {
	if strings.HasPrefix(location, gcsScheme) {
		return l.loadGCS(ctx, location)
	}
	return loadFile(location)
}

// Close releases the storage client if one was created.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}

func loadFile(location string) (Image, error) {
	f, err := os.Open(location)
	if err != nil {
		return Image{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, ReadLimit))
	if err != nil {
		return Image{}, fmt.Errorf("read image %s: %w", location, err)
	}
	return Image{Location: location, Name: path.Base(location), Data: data}, nil
}

func (l *Loader) loadGCS(ctx context.Context, location string) (Image, error) {
	bucket, object, err := ParseGCSLocation(location)
	if err != nil {
		return Image{}, err
	}
	client, err := l.storageClient(ctx)
	if err != nil {
		return Image{}, err
	}

	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return Image{}, fmt.Errorf("open %s: %w", location, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, ReadLimit))
	if err != nil {
		return Image{}, fmt.Errorf("read %s: %w", location, err)
	}
	return Image{Location: location, Name: path.Base(object), Data: data}, nil
}

func (l *Loader) storageClient(ctx context.Context) (*storage.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client == nil {
		client, err := l.newClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage.NewClient: %w", err)
		}
		l.client = client
	}
	return l.client, nil
}

// ParseGCSLocation splits gs://bucket/object into its parts.
func ParseGCSLocation(location string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(location, gcsScheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not a gs:// location", ErrInvalidLocation, location)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("%w: %q must name a bucket and an object", ErrInvalidLocation, location)
	}
	return bucket, object, nil
}

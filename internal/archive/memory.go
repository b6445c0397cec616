package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrPresignUnsupported is returned by backends that cannot issue URLs.
var ErrPresignUnsupported = errors.New("presigned urls not supported")

// MemoryBackend keeps objects in process memory. Used for tests and local
// development.
type MemoryBackend struct {
	mu      sync.RWMutex
	prefix  string
	objects map[string][]byte
	refs    map[string]*ObjectRef
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(prefix string) *MemoryBackend {
	return &MemoryBackend{
		prefix:  prefix,
		objects: make(map[string][]byte),
		refs:    make(map[string]*ObjectRef),
	}
}

func (b *MemoryBackend) fullPath(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + "/" + key
}

func (b *MemoryBackend) Put(ctx context.Context, key string, data io.Reader, contentType string) (*ObjectRef, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	hash := sha256.Sum256(content)

	full := b.fullPath(key)
	ref := &ObjectRef{
		URI:         "memory://" + full,
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(content)),
		Checksum:    hex.EncodeToString(hash[:]),
		CreatedAt:   time.Now().UTC(),
	}

	b.mu.Lock()
	b.objects[full] = content
	b.refs[full] = ref
	b.mu.Unlock()

	c := *ref
	return &c, nil
}

func (b *MemoryBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	content, ok := b.objects[b.fullPath(key)]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (b *MemoryBackend) List(ctx context.Context, prefix string) ([]*ObjectRef, error) {
	full := b.fullPath(prefix)

	b.mu.RLock()
	defer b.mu.RUnlock()

	var refs []*ObjectRef
	for k, ref := range b.refs {
		if strings.HasPrefix(k, full) {
			c := *ref
			refs = append(refs, &c)
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Key < refs[j].Key })
	return refs, nil
}

func (b *MemoryBackend) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "", ErrPresignUnsupported
}

// Package archive writes finished orchestration sessions to object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/metrics"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// ErrNotFound is returned when an archived object does not exist.
var ErrNotFound = errors.New("archived object not found")

// ObjectRef identifies an archived object.
type ObjectRef struct {
	// URI is the full object location (e.g., "s3://bucket/prefix/sessions/abc.json")
	URI string `json:"uri"`

	Key         string    `json:"key"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size,omitempty"`
	Checksum    string    `json:"checksum,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Backend defines the storage backend interface. Keys are relative to the
// backend's prefix.
type Backend interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) (*ObjectRef, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]*ObjectRef, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Config holds archive configuration.
type Config struct {
	// Type: "none", "memory", "s3" or "minio"
	Type string

	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool

	// PathPrefix is prepended to all object keys
	PathPrefix string

	Logger *slog.Logger
}

// Archiver stores session snapshots.
type Archiver struct {
	backend Backend
	logger  *slog.Logger
}

// New creates an archiver for cfg. Type "none" (or empty) returns nil, which
// callers treat as archiving disabled.
func New(cfg *Config) (*Archiver, error) {
	var backend Backend
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		backend = NewMemoryBackend(cfg.PathPrefix)
	case "s3", "minio":
		s3Backend, err := NewS3Backend(&S3Config{
			Endpoint:        cfg.Endpoint,
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UseSSL:          cfg.UseSSL,
			PathPrefix:      cfg.PathPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("create s3 backend: %w", err)
		}
		backend = s3Backend
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
	return NewArchiver(backend, cfg.Logger), nil
}

// NewArchiver wraps an existing backend.
func NewArchiver(backend Backend, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{backend: backend, logger: logger}
}

// SessionKey returns the object key for a session.
func SessionKey(sessionID string) string {
	return path.Join("sessions", sessionID+".json")
}

// ArchiveSession writes the session as JSON.
func (a *Archiver) ArchiveSession(ctx context.Context, sess *types.OrchestrationSession) (*ObjectRef, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		metrics.ArchiveWrites.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	ref, err := a.backend.Put(ctx, SessionKey(sess.ID), bytes.NewReader(data), "application/json")
	if err != nil {
		metrics.ArchiveWrites.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("archive session %s: %w", sess.ID, err)
	}

	metrics.ArchiveWrites.WithLabelValues("success").Inc()
	a.logger.Debug("session archived", slog.String("session_id", sess.ID), slog.String("uri", ref.URI))
	return ref, nil
}

// LoadSession reads an archived session back.
func (a *Archiver) LoadSession(ctx context.Context, sessionID string) (*types.OrchestrationSession, error) {
	body, err := a.backend.Get(ctx, SessionKey(sessionID))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var sess types.OrchestrationSession
	if err := json.NewDecoder(body).Decode(&sess); err != nil {
		return nil, fmt.Errorf("decode archived session: %w", err)
	}
	return &sess, nil
}

// ListSessions returns the ids of archived sessions.
func (a *Archiver) ListSessions(ctx context.Context) ([]string, error) {
	refs, err := a.backend.List(ctx, "sessions/")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		name := path.Base(ref.Key)
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// DownloadURL returns a time-limited URL for an archived session.
func (a *Archiver) DownloadURL(ctx context.Context, sessionID string, expiry time.Duration) (string, error) {
	return a.backend.PresignGet(ctx, SessionKey(sessionID), expiry)
}

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// catalogue is the on-disk layout of an agents file.
type catalogue struct {
	Agents []catalogueEntry `yaml:"agents"`
}

type catalogueEntry struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Version      string            `yaml:"version"`
	Capabilities []string          `yaml:"capabilities"`
	Status       types.AgentStatus `yaml:"status"`
	Endpoint     string            `yaml:"endpoint"`
	Description  string            `yaml:"description"`
	Metadata     map[string]string `yaml:"metadata"`
}

// FileRegistry serves agents from a YAML catalogue and reloads it when the
// file changes. It is read-only.
type FileRegistry struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	agents *MemoryRegistry

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileRegistry loads path and starts watching it. A watcher that cannot be
// started leaves the registry serving the initial load.
func NewFileRegistry(path string, logger *slog.Logger) (*FileRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &FileRegistry{
		path:   path,
		logger: logger,
		done:   make(chan struct{}),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("agent catalogue watcher unavailable", slog.Any("error", err))
		return r, nil
	}
	// Watch the directory so editors that replace the file are seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		logger.Warn("agent catalogue watcher unavailable", slog.Any("error", err))
		return r, nil
	}
	r.watcher = watcher

	r.wg.Add(1)
	go r.watch()
	return r, nil
}

// Reload re-reads the catalogue. On error the previous agents are kept.
func (r *FileRegistry) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read agent catalogue: %w", err)
	}

	var cat catalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return fmt.Errorf("parse agent catalogue %s: %w", r.path, err)
	}

	next := NewMemoryRegistry()
	ctx := context.Background()
	for i, e := range cat.Agents {
		if e.Name == "" {
			e.Name = e.ID
		}
		_, err := next.Create(ctx, &CreateAgentRequest{
			ID:           e.ID,
			Name:         e.Name,
			Version:      e.Version,
			Capabilities: e.Capabilities,
			Status:       e.Status,
			Endpoint:     e.Endpoint,
			Description:  e.Description,
			Metadata:     e.Metadata,
		})
		if err != nil {
			return fmt.Errorf("agent catalogue entry %d: %w", i, err)
		}
	}

	r.mu.Lock()
	r.agents = next
	r.mu.Unlock()

	r.logger.Info("agent catalogue loaded", slog.String("path", r.path), slog.Int("agents", len(cat.Agents)))
	return nil
}

func (r *FileRegistry) watch() {
	defer r.wg.Done()

	base := filepath.Base(r.path)
	var debounce <-chan time.Time
	for {
		select {
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce = time.After(100 * time.Millisecond)
			}
		case <-debounce:
			debounce = nil
			if err := r.Reload(); err != nil {
				r.logger.Warn("agent catalogue reload failed", slog.Any("error", err))
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("agent catalogue watcher error", slog.Any("error", err))
		}
	}
}

func (r *FileRegistry) current() *MemoryRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agents
}

func (r *FileRegistry) Create(ctx context.Context, req *CreateAgentRequest) (*Agent, error) {
	return nil, ErrReadOnly
}

func (r *FileRegistry) Get(ctx context.Context, id string) (*Agent, error) {
	return r.current().Get(ctx, id)
}

func (r *FileRegistry) Update(ctx context.Context, id string, req *UpdateAgentRequest) (*Agent, error) {
	return nil, ErrReadOnly
}

func (r *FileRegistry) Delete(ctx context.Context, id string) error {
	return ErrReadOnly
}

func (r *FileRegistry) List(ctx context.Context, opts *ListOptions) ([]*Agent, error) {
	return r.current().List(ctx, opts)
}

func (r *FileRegistry) Exists(ctx context.Context, id string) (bool, error) {
	return r.current().Exists(ctx, id)
}

// Ping reports whether the catalogue file is still readable.
func (r *FileRegistry) Ping(ctx context.Context) error {
	if _, err := os.Stat(r.path); err != nil {
		return fmt.Errorf("agent catalogue: %w", err)
	}
	return nil
}

// Close stops the watcher.
func (r *FileRegistry) Close() error {
	select {
	case <-r.done:
		return nil
	default:
	}
	close(r.done)
	var err error
	if r.watcher != nil {
		err = r.watcher.Close()
	}
	r.wg.Wait()
	return err
}

var _ AgentRegistry = (*FileRegistry)(nil)

package driver

import (
	"context"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/metrics"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/sessionstore"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// StoreEmitter adapts a session Store to the EventEmitter interface.
type StoreEmitter struct {
	store sessionstore.Store
}

// NewStoreEmitter creates a new emitter backed by a session Store.
func NewStoreEmitter(store sessionstore.Store) *StoreEmitter {
	return &StoreEmitter{store: store}
}

// EmitEvent sends an event to the Store.
func (e *StoreEmitter) EmitEvent(ctx context.Context, sessionID string, input *types.EventInput) error {
	_, err := e.store.AppendEvent(ctx, sessionID, input)
	metrics.RecordStoreOp("append_event", err)
	if err == nil {
		metrics.EventsTotal.WithLabelValues(string(input.Type)).Inc()
	}
	return err
}

// Log emits a log event at the given level.
func (e *StoreEmitter) Log(ctx context.Context, sessionID string, level types.LogLevel, message string) error {
	return e.EmitEvent(ctx, sessionID, &types.EventInput{
		Type: types.EventTypeLog,
		Data: map[string]interface{}{
			"level":   level,
			"message": message,
		},
	})
}

// Ensure StoreEmitter implements EventEmitter
var _ EventEmitter = (*StoreEmitter)(nil)

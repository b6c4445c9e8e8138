// Package audit records structured, append-only decisions made by the
// apply engine (Applied/Ignored/Duplicate) for later inspection.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidalsync/core/pkg/canonicalize"
)

// EventType categorizes an audit record.
type EventType string

const (
	EventApply  EventType = "APPLY"
	EventSync   EventType = "SYNC"
	EventSystem EventType = "SYSTEM"
)

// Event is a structured audit record for one apply-engine decision or
// sync-protocol milestone.
type Event struct {
	ID        string                 `json:"id"`
	NodeID    string                 `json:"node_id"`
	Type      EventType              `json:"type"`
	Action    string                 `json:"action"`
	Dataset   string                 `json:"dataset,omitempty"`
	Row       string                 `json:"row,omitempty"`
	Column    string                 `json:"column,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Logger records audit events.
type Logger interface {
	Record(ctx context.Context, eventType EventType, action, dataset, row, column string, value interface{}) error
}

// logger implements Logger, writing structured JSON lines to a
// configurable Writer.
type logger struct {
	mu     sync.Mutex
	writer io.Writer
	nodeID string
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger(nodeID string) Logger {
	return NewLoggerWithWriter(nodeID, os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to the given writer,
// useful for tests and custom sinks.
func NewLoggerWithWriter(nodeID string, w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{writer: w, nodeID: nodeID}
}

// Record canonicalizes value via JCS before logging, so audit records
// for semantically-equal JSON are byte-identical across re-applies.
// This canonicalization is unrelated to the HLC timestamp hash and must
// never be applied to it.
func (l *logger) Record(ctx context.Context, eventType EventType, action, dataset, row, column string, value interface{}) error {
	var metadata map[string]interface{}
	if value != nil {
		canon, err := canonicalize.JCSString(value)
		if err != nil {
			return err
		}
		metadata = map[string]interface{}{"value": canon}
	}

	event := Event{
		ID:        uuid.New().String(),
		NodeID:    l.nodeID,
		Type:      eventType,
		Action:    action,
		Dataset:   dataset,
		Row:       row,
		Column:    column,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(bytes, '\n')...))
	return err
}

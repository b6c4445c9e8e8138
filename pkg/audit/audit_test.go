package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidalsync/core/pkg/audit"
)

func TestLoggerRecordWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter("node-1", &buf)

	err := logger.Record(context.Background(), audit.EventApply, "applied", "contacts", "row-1", "email", nil)
	require.NoError(t, err)

	output := buf.String()
	assert.True(t, strings.HasPrefix(output, "AUDIT: "))

	jsonPart := strings.TrimSpace(strings.TrimPrefix(output, "AUDIT: "))

	var event audit.Event
	require.NoError(t, json.Unmarshal([]byte(jsonPart), &event))

	assert.Equal(t, audit.EventApply, event.Type)
	assert.Equal(t, "applied", event.Action)
	assert.Equal(t, "contacts", event.Dataset)
	assert.Equal(t, "row-1", event.Row)
	assert.Equal(t, "email", event.Column)
	assert.Equal(t, "node-1", event.NodeID)
	assert.NotEmpty(t, event.ID)
	assert.Len(t, event.ID, 36)
}

func TestLoggerRecordCanonicalizesValue(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter("node-1", &buf)

	value := map[string]interface{}{"b": 1, "a": 2}
	err := logger.Record(context.Background(), audit.EventApply, "applied", "contacts", "row-1", "email", value)
	require.NoError(t, err)

	jsonPart := strings.TrimSpace(strings.TrimPrefix(buf.String(), "AUDIT: "))
	var event audit.Event
	require.NoError(t, json.Unmarshal([]byte(jsonPart), &event))

	canon, ok := event.Metadata["value"].(string)
	require.True(t, ok)
	assert.Equal(t, `{"a":2,"b":1}`, canon)
}

func TestLoggerRecordNilValueOmitsMetadata(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter("node-1", &buf)

	err := logger.Record(context.Background(), audit.EventSync, "round-complete", "", "", "", nil)
	require.NoError(t, err)

	jsonPart := strings.TrimSpace(strings.TrimPrefix(buf.String(), "AUDIT: "))
	var event audit.Event
	require.NoError(t, json.Unmarshal([]byte(jsonPart), &event))
	assert.Nil(t, event.Metadata)
}

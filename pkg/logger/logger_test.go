package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	ctx := logg.WithTransactionID(context.Background(), "txn-123")
	ctx = logg.WithUserID(ctx, "user-9")
	logg.Info(ctx, "payment.tick")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "txn-123", entry["transaction_id"])
	assert.Equal(t, "user-9", entry["user_id"])
	assert.Equal(t, "payment.tick", entry["message"])
	assert.Equal(t, "test", entry["service"])
}

func TestBaseLoggerUnaffectedByChildContext(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	_ = logg.WithGuestID(context.Background(), "guest-1")
	logg.Info(context.Background(), "plain")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, present := entry["guest_id"]
	assert.False(t, present)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, ParseLevel("debug").String(), "debug")
	assert.Equal(t, ParseLevel("").String(), "info")
	assert.Equal(t, ParseLevel("bogus").String(), "info")
}

package auditlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapSinkWritesNamedEntries(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Info("crud.create", map[string]interface{}{
		"model":   "groups",
		"id":      int64(7),
		"user_id": 1,
	})

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "crud.create", entries[0].Message)
	assert.Equal(t, "audit", entries[0].LoggerName)

	fields := entries[0].ContextMap()
	assert.Equal(t, "groups", fields["model"])
	assert.EqualValues(t, 7, fields["id"])
}

func TestNopSink(t *testing.T) {
	assert.NotPanics(t, func() {
		NopSink{}.Info("crud.delete", nil)
	})
}

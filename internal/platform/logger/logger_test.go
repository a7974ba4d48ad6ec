package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs(t *testing.T) {
	out := sanitizeKVs([]interface{}{"mysql_dsn", "root:root@tcp(db)/crm", "customer_id", 7, "dangling"})
	assert.Equal(t, []interface{}{"mysql_dsn", "[REDACTED]", "customer_id", 7, "dangling"}, out)
}

func TestWith_RedactsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("component", "test").Info("connected", "redis_password", "hunter2")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "test", fields["component"])
		assert.Equal(t, "[REDACTED]", fields["redis_password"])
	}
}

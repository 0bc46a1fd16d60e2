// Package auditlog records human-readable activity entries for
// state-changing operations. The sink is append-only and safe for
// concurrent use.
package auditlog

import "go.uber.org/zap"

// Sink accepts structured audit entries.
type Sink interface {
	Info(message string, fields map[string]interface{})
}

// ZapSink writes audit entries through a dedicated zap logger.
type ZapSink struct {
	log *zap.SugaredLogger
}

// NewZapSink creates a sink over the given zap logger.
func NewZapSink(log *zap.Logger) *ZapSink {
	return &ZapSink{log: log.Sugar().Named("audit")}
}

func (s *ZapSink) Info(message string, fields map[string]interface{}) {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	s.log.Infow(message, kv...)
}

// NopSink discards all entries. Useful in tests.
type NopSink struct{}

func (NopSink) Info(message string, fields map[string]interface{}) {}

package mq

import (
	"log/slog"
)

// Sink receives human-readable reports tagged with the server id. It must not
// block for long; it is called from the dispatch goroutine.
type Sink interface {
	LogServer(id uint32, msg string)
}

// SinkFunc adapts an ordinary function to a Sink.
type SinkFunc func(id uint32, msg string)

func (f SinkFunc) LogServer(id uint32, msg string) { f(id, msg) }

type slogSink struct {
	logger *slog.Logger
}

// NewSlogSink reports through logger with the id under "server_id".
func NewSlogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return slogSink{logger: logger}
}

func (s slogSink) LogServer(id uint32, msg string) {
	s.logger.Info(msg, slog.Uint64("server_id", uint64(id)))
}

type discardSink struct{}

func (discardSink) LogServer(uint32, string) {}

package progress

import (
	"context"
	"log/slog"
)

// LoggingSink forwards every event to log/slog at a level chosen by status
// (failed -> Warn, everything else -> Debug), routing execution telemetry
// through structured slog fields rather than ad hoc fmt.Printf calls.
type LoggingSink struct {
	Logger *slog.Logger
}

// NewLoggingSink constructs a LoggingSink. If logger is nil, slog.Default()
// is used.
func NewLoggingSink(logger *slog.Logger) *LoggingSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingSink{Logger: logger}
}

// Publish implements Sink.
func (s *LoggingSink) Publish(e Event) {
	attrs := []any{
		slog.String("stage", string(e.Stage)),
		slog.String("status", string(e.Status)),
	}
	if e.CandidateID != nil {
		attrs = append(attrs, slog.String("candidate_id", e.CandidateID.String()))
	}
	if e.Iteration != nil {
		attrs = append(attrs, slog.Uint64("iteration", uint64(*e.Iteration)))
	}
	if e.TotalScore != nil {
		attrs = append(attrs, slog.Float64("total_score", float64(*e.TotalScore)))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}

	if e.Status == StatusFailed {
		s.Logger.Warn(e.Message, attrs...)
		return
	}
	s.Logger.Debug(e.Message, attrs...)
}

// ChannelSink publishes every event onto a buffered channel for a consumer
// (e.g. a CLI progress bar) to drain. Publish never blocks forever: if the
// channel is full and ctx is done, the event is dropped.
type ChannelSink struct {
	ch  chan Event
	ctx context.Context
}

// NewChannelSink constructs a ChannelSink with the given buffer size. ctx
// bounds how long Publish will block trying to deliver to a full channel.
func NewChannelSink(ctx context.Context, buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, buffer), ctx: ctx}
}

// Events returns the channel events are delivered on.
func (s *ChannelSink) Events() <-chan Event { return s.ch }

// Publish implements Sink.
func (s *ChannelSink) Publish(e Event) {
	select {
	case s.ch <- e:
	case <-s.ctx.Done():
	}
}

// Close closes the underlying channel. Callers must stop publishing before
// calling Close.
func (s *ChannelSink) Close() { close(s.ch) }

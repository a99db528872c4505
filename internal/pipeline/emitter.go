package pipeline

import (
	"context"
)

// RunEventType classifies streamed run events.
type RunEventType int

const (
	EventTypeUnspecified RunEventType = iota
	EventTypeLog
	EventTypeProgress
	EventTypeComplete
	EventTypeError
)

// RunEvent represents a streamable event from a pipeline stage.
type RunEvent struct {
	Type     RunEventType `json:"type"`
	Stage    string       `json:"stage,omitempty"`
	Message  string       `json:"message,omitempty"`
	Progress int          `json:"progress,omitempty"` // 0-100
}

// RunEventEmitter allows stages to emit events during execution.
type RunEventEmitter interface {
	Emit(event RunEvent)
	EmitLog(message string)
	EmitProgress(percent int, message string)
}

type emitterKey struct{}

// WithEmitter attaches an emitter to the context.
func WithEmitter(ctx context.Context, emitter RunEventEmitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, emitter)
}

// EmitterFrom retrieves the emitter from context, or returns a no-op emitter.
func EmitterFrom(ctx context.Context) RunEventEmitter {
	if e, ok := ctx.Value(emitterKey{}).(RunEventEmitter); ok {
		return e
	}
	return noopEmitter{}
}

// noopEmitter discards all events.
type noopEmitter struct{}

func (noopEmitter) Emit(RunEvent)            {}
func (noopEmitter) EmitLog(string)           {}
func (noopEmitter) EmitProgress(int, string) {}

// ChannelEmitter sends events to a channel without blocking.
type ChannelEmitter struct {
	Ch    chan<- RunEvent
	Stage string
}

func (e *ChannelEmitter) Emit(event RunEvent) {
	if event.Stage == "" {
		event.Stage = e.Stage
	}
	select {
	case e.Ch <- event:
	default: // non-blocking
	}
}

func (e *ChannelEmitter) EmitLog(message string) {
	e.Emit(RunEvent{Type: EventTypeLog, Message: message})
}

func (e *ChannelEmitter) EmitProgress(percent int, message string) {
	e.Emit(RunEvent{Type: EventTypeProgress, Progress: percent, Message: message})
}

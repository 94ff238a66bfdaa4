package logging

import (
	"context"
	"log/slog"

	"voicenotes/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldPassID correlates every line written during one sync pass.
	FieldPassID = "pass_id"
	// FieldPhase names the pass phase (inbound or outbound).
	FieldPhase = "phase"
	// FieldUpdateID is the remote event identifier being processed.
	FieldUpdateID = "update_id"
	// FieldRecording is the recording filename being delivered or acknowledged.
	FieldRecording = "recording"
	// FieldMessageID is the remote message identifier of a delivered voice note.
	FieldMessageID = "message_id"
	// FieldChatID is the remote conversation identifier.
	FieldChatID = "chat_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.PassIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPassID, id))
	}
	if phase, ok := services.PhaseFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPhase, phase))
	}
	if id, ok := services.UpdateIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldUpdateID, id))
	}
	if name, ok := services.RecordingFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRecording, name))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPRouteKey      = "http.route"
	HTTPStatusCodeKey = "http.status_code"

	// Session attributes
	SessionClientIDKey = "session.client_id"
	SessionIDKey       = "session.id"
	SessionUIDKey      = "session.uid"
	SessionPriorityKey = "session.priority"
	SessionStateKey    = "session.state"
	SessionAcceptedKey = "session.accepted"
	SessionRemovedKey  = "session.removed"

	// Transcoding attributes
	TranscodeSourceKey      = "transcode.source"
	TranscodeDestinationKey = "transcode.destination"
	TranscodeOutputCodecKey = "transcode.output_codec"
	TranscodeBitrateKey     = "transcode.bitrate"
	TranscodeEngineKey      = "transcode.engine"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SessionAttributes creates session-related span attributes.
func SessionAttributes(clientID int64, sessionID int32, uid int32) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(SessionClientIDKey, clientID),
		attribute.Int(SessionIDKey, int(sessionID)),
		attribute.Int(SessionUIDKey, int(uid)),
	}
}

// TranscodeAttributes creates transcoding-related span attributes. Empty
// values and a non-positive bitrate are omitted.
func TranscodeAttributes(source, destination, outputCodec string, bitrate int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if source != "" {
		attrs = append(attrs, attribute.String(TranscodeSourceKey, source))
	}
	if destination != "" {
		attrs = append(attrs, attribute.String(TranscodeDestinationKey, destination))
	}
	if outputCodec != "" {
		attrs = append(attrs, attribute.String(TranscodeOutputCodecKey, outputCodec))
	}
	if bitrate > 0 {
		attrs = append(attrs, attribute.Int(TranscodeBitrateKey, bitrate))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

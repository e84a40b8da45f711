package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldChannelID is the broadcast channel ID
	FieldChannelID = "channel_id"

	// FieldSourceID is the ingest source ID
	FieldSourceID = "source_id"

	// FieldJobID is the analysis job ID
	FieldJobID = "job_id"

	// FieldSegmentID is the media segment ID
	FieldSegmentID = "segment_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldUserID is the user ID for manual overrides
	FieldUserID = "user_id"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldStatus is the operation or entity status
	FieldStatus = "status"

	// FieldVerdict is the health verdict for a source
	FieldVerdict = "verdict"
)

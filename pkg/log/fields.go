package log

import (
	"time"
)

// Standard field names for consistent logging across the application
const (
	FieldError     = "error"
	FieldComponent = "component"
	FieldVersion   = "version"

	// Request fields
	FieldRequestID  = "request_id"
	FieldTraceID    = "trace_id"
	FieldCallerID   = "caller_id"
	FieldCallerRole = "caller_role"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldRoute      = "route"
	FieldStatusCode = "status_code"
	FieldLatency    = "latency"
	FieldClientIP   = "client_ip"

	// Registry fields
	FieldOperation = "operation"
	FieldEntity    = "entity"
	FieldEntityID  = "entity_id"
	FieldMailID    = "mail_id"
	FieldErrorType = "error_type"
	FieldErrorCode = "error_code"

	// Storage fields
	FieldDatabase = "database"
	FieldCacheKey = "cache_key"
	FieldCacheHit = "cache_hit"
)

// RequestFields creates the fields describing an inbound HTTP request
func RequestFields(requestID, method, path string) []Field {
	return []Field{
		String(FieldRequestID, requestID),
		String(FieldMethod, method),
		String(FieldPath, path),
	}
}

// ResponseFields creates the fields describing the response of a request
func ResponseFields(statusCode int, latency time.Duration) []Field {
	return []Field{
		Int(FieldStatusCode, statusCode),
		Duration(FieldLatency, latency),
	}
}

// EntityFields creates the fields identifying an entity touched by an operation
func EntityFields(operation, entity string, id interface{}) []Field {
	return []Field{
		String(FieldOperation, operation),
		String(FieldEntity, entity),
		Any(FieldEntityID, id),
	}
}

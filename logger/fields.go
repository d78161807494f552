package logger

// Standard field names used across the service.
const (
	FieldService    = "service"
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientID   = "client_id"
	FieldBreaker    = "breaker"
	FieldAttempt    = "attempt"
	FieldDurationMS = "duration_ms"
)

// Fields builds a field map from alternating key/value pairs. Keys that are
// not strings and trailing odd values are dropped.
func Fields(kv ...interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
	}
	return fields
}

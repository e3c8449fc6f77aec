package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldVersion      = "version"
	FieldKind         = "kind"
	FieldRows         = "rows"
	FieldAccepted     = "accepted"
	FieldDropped      = "dropped"
	FieldZeroed       = "zeroed"
	FieldReclassified = "reclassified"
	FieldEncoding     = "encoding"
	FieldRules        = "rules"
	FieldOverrides    = "overrides"
	FieldLine         = "line"
	FieldMonth        = "month"
	FieldMonths       = "months"
	FieldUnclassified = "unclassified"
	FieldViolations   = "violations"
	FieldFile         = "file"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentIngest  = "ingest"
	ComponentMapping = "mapping"
	ComponentPnL     = "pnl"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentExport  = "export"
	ComponentBackend = "backend"
	ComponentCLI     = "cli"
)

// Operations defines standard operation names
const (
	OpUpload    = "upload"
	OpReset     = "reset"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpCalculate = "calculate"
	OpValidate  = "validate"
	OpExport    = "export"
	OpPublish   = "publish"
	OpPersist   = "persist"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithIngest adds the counters of a normalization run.
func (f LogFields) WithIngest(rows, accepted, dropped, zeroed, reclassified int, encoding string) LogFields {
	f[FieldRows] = rows
	f[FieldAccepted] = accepted
	f[FieldDropped] = dropped
	f[FieldZeroed] = zeroed
	f[FieldReclassified] = reclassified
	f[FieldEncoding] = encoding
	return f
}

// WithVersion adds the dataset version.
func (f LogFields) WithVersion(version int64) LogFields {
	f[FieldVersion] = version
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}

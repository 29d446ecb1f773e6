package log

// Common field names for structured logging
const (
	FieldComponent          = "component"
	FieldRequestID          = "request_id"
	FieldClientIP           = "client_ip"
	FieldMethod             = "method"
	FieldPath               = "path"
	FieldStatusCode         = "status_code"
	FieldDuration           = "duration_ms"
	FieldError              = "error"
	FieldOperation          = "operation"
	FieldRunID              = "run_id"
	FieldPlanID             = "plan_id"
	FieldEventID            = "event_id"
	FieldSamples            = "samples"
	FieldHorizon            = "horizon_years"
	FieldSeed               = "seed"
	FieldScenario           = "scenario"
	FieldWorkers            = "workers"
	FieldEventYears         = "event_years"
	FieldSuccessProbability = "success_probability"
	FieldVolatility         = "volatility"
	FieldCacheHit           = "cache_hit"
	FieldSheetsRef          = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentProjection = "projection"
	ComponentEvents     = "life_events"
	ComponentPlans      = "plans"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentRefresh    = "refresh"
	ComponentSheets     = "sheets"
	ComponentCache      = "cache"
	ComponentSecurity   = "security"
	ComponentRateLimit  = "rate_limit"
	ComponentBackend    = "backend"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpDelete   = "delete"
	OpList     = "list"
	OpSimulate = "simulate"
	OpEnqueue  = "enqueue"
	OpExecute  = "execute"
	OpExport   = "export"
	OpRefresh  = "refresh"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeTimeout       = "timeout_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRun adds the fields identifying a projection run.
func (f LogFields) WithRun(runID string, samples, horizon int, seed uint64) LogFields {
	if runID != "" {
		f[FieldRunID] = runID
	}
	f[FieldSamples] = samples
	f[FieldHorizon] = horizon
	f[FieldSeed] = seed
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

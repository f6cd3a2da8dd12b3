package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldSessionID  = "session_id"
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

	FieldStep          = "step"
	FieldEnteredBy     = "entered_by"
	FieldCategory      = "category"
	FieldPaymentMethod = "payment_method"
	FieldAmountCents   = "amount_cents"
	FieldLocation      = "location"
	FieldLedgerRef     = "ledger_ref"
	FieldFormat        = "format"
	FieldRows          = "rows"
)

// Components
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentWizard    = "wizard"
	ComponentExport    = "export"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentSession   = "session"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
	ComponentTemplate  = "template"
)

// Operations
const (
	OpAppend   = "append"
	OpRead     = "read"
	OpExport   = "export"
	OpValidate = "validate"
	OpRender   = "render"
	OpResolve  = "resolve_location"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields is a small builder for slog key/value pairs.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
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

// WithExpense adds the fields of a recorded expense.
func (f LogFields) WithExpense(enteredBy, category, payment string, amountCents int64, location string) LogFields {
	f[FieldEnteredBy] = enteredBy
	f[FieldCategory] = category
	f[FieldPaymentMethod] = payment
	f[FieldAmountCents] = amountCents
	f[FieldLocation] = location
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice flattens the fields for slog.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}

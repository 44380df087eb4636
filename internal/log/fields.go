package log

// Common field names for structured logging
const (
	FieldComponent           = "component"
	FieldError               = "error"
	FieldOperation           = "operation"
	FieldUserID              = "user_id"
	FieldAccountID           = "account_id"
	FieldTransactionID       = "transaction_id"
	FieldLinkedTransactionID = "linked_transaction_id"
	FieldCategoryID          = "category_id"
	FieldAmountCents         = "amount_cents"
	FieldTable               = "table"
	FieldYear                = "year"
	FieldMonth               = "month"
	FieldCount               = "count"
	FieldDuration            = "duration_ms"
)

// Components
const (
	ComponentApp       = "app"
	ComponentStorage   = "storage"
	ComponentSchema    = "schema"
	ComponentSeed      = "seed"
	ComponentStore     = "store"
	ComponentLedger    = "ledger"
	ComponentAggregate = "aggregate"
	ComponentRelay     = "relay"
	ComponentAMQP      = "amqp"
	ComponentCLI       = "cli"
)

// Operations
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpRecord   = "record"
	OpTransfer = "transfer"
	OpAnnounce = "announce"
	OpAck      = "ack"
	OpMigrate  = "migrate"
	OpSeed     = "seed"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields is a builder for structured log attributes.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds the error text; nil is ignored.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithTransaction adds the identifying fields of a ledger entry.
func (f LogFields) WithTransaction(id, accountID string, amountCents int64) LogFields {
	f[FieldTransactionID] = id
	f[FieldAccountID] = accountID
	f[FieldAmountCents] = amountCents
	return f
}

func (f LogFields) WithPeriod(month, year int) LogFields {
	f[FieldMonth] = month
	f[FieldYear] = year
	return f
}

// ToSlice flattens the fields into slog key/value arguments.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}

package app

// AuditedOperation tracks a CLI operation that may mutate the catalog.
// Operations are created in memory with ID=0. Only catalog-mutating commands
// persist them (giving them an auto-increment ID from the catalog).
type AuditedOperation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewAuditedOperation creates a new in-memory operation record.
func NewAuditedOperation(operation, parameters string) *AuditedOperation {
	return &AuditedOperation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the catalog.
func (op *AuditedOperation) Persisted() bool {
	return op.ID != 0
}

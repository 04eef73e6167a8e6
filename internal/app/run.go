package app

// HarvestRun tracks a CLI operation that may mutate the record store.
// Runs are created in memory with ID=0. Only store-mutating commands
// persist them (giving them an auto-increment ID from the database).
type HarvestRun struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewHarvestRun creates a new in-memory harvest run.
func NewHarvestRun(operation, parameters string) *HarvestRun {
	return &HarvestRun{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this run has been saved to the record store.
func (r *HarvestRun) Persisted() bool {
	return r.ID != 0
}

package schemas

// -- Batch Schemas --

// Compound is one row of the input table. Identity is the row position in
// the batch; the value is immutable once read.
type Compound struct {
	Name   string
	Smiles string
}

// BatchResult is the running aggregate for one batch run. It is mutated by
// the batch runner only.
type BatchResult struct {
	SuccessCount int
	FailCount    int
}

// Total returns the number of compounds that went through orchestration.
func (r BatchResult) Total() int {
	return r.SuccessCount + r.FailCount
}

// File: internal/dataset/dataset.go
// Description: Loads and validates the compound input table. Validation
// happens before any browser work: a structurally invalid file aborts the
// whole run, while individual rows without a usable SMILES are filtered out.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andrilaw/swissbatch/api/schemas"
)

// Required input columns. Matching is exact, as in the reference data files.
const (
	columnName   = "Name"
	columnSmiles = "Smiles"
)

// ValidationError reports a structurally invalid input file (missing
// required columns). It is fatal for the run.
type ValidationError struct {
	Missing   []string
	Available []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("input file is missing required columns %v (available: %v)",
		e.Missing, e.Available)
}

// Stats summarizes the loaded table.
type Stats struct {
	Total int // rows in the file, excluding the header
	Valid int // rows with a non-empty SMILES
}

// Load reads the CSV file at path and returns the compounds eligible for
// processing. Rows whose Smiles cell is empty or whitespace-only are
// excluded; both cells are trimmed.
func Load(path string) ([]schemas.Compound, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to open input file %q: %w", path, err)
	}
	defer f.Close()

	return parse(f)
}

func parse(r io.Reader) ([]schemas.Compound, Stats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, Stats{}, fmt.Errorf("input file is empty: %w", err)
		}
		return nil, Stats{}, fmt.Errorf("failed to read header row: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, required := range []string{columnName, columnSmiles} {
		if _, ok := columns[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		available := make([]string, 0, len(header))
		for _, name := range header {
			available = append(available, strings.TrimSpace(name))
		}
		return nil, Stats{}, &ValidationError{Missing: missing, Available: available}
	}

	nameIdx := columns[columnName]
	smilesIdx := columns[columnSmiles]

	var (
		compounds []schemas.Compound
		stats     Stats
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, Stats{}, fmt.Errorf("failed to read row %d: %w", stats.Total+2, err)
		}
		stats.Total++

		var name, smiles string
		if nameIdx < len(record) {
			name = strings.TrimSpace(record[nameIdx])
		}
		if smilesIdx < len(record) {
			smiles = strings.TrimSpace(record[smilesIdx])
		}
		if smiles == "" {
			continue
		}

		stats.Valid++
		compounds = append(compounds, schemas.Compound{Name: name, Smiles: smiles})
	}

	return compounds, stats, nil
}

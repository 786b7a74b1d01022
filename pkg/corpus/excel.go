package corpus

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
)

// Roles maps logical column roles to header names. Empty names fall back to
// positional assignment (question, answer, status, corrected).
type Roles struct {
	Question  string
	Answer    string
	Status    string
	Corrected string
}

// Columns holds resolved column indexes. Corrected is -1 when the source has
// no corrected-answer column.
type Columns struct {
	Question  int
	Answer    int
	Status    int
	Corrected int
}

// ReadTable reads the first sheet of an xlsx file and returns its header row
// and data rows.
func ReadTable(path string) (header []string, rows [][]string, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("%w: workbook has no sheets", ErrParse)
	}

	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return all[0], all[1:], nil
}

// ResolveColumns maps the requested roles onto header positions. Named roles
// must match a header cell exactly; unnamed roles take columns 0-3 in order.
func ResolveColumns(header []string, roles Roles) (Columns, error) {
	if len(header) < 2 {
		return Columns{}, fmt.Errorf("%w: need at least 2 columns, got %d", ErrSchema, len(header))
	}

	cols := Columns{Question: 0, Answer: 1, Status: 2, Corrected: 3}
	if len(header) < 3 {
		cols.Status = -1
	}
	if len(header) < 4 {
		cols.Corrected = -1
	}

	find := func(name string) (int, bool) {
		for i, h := range header {
			if h == name {
				return i, true
			}
		}
		return -1, false
	}

	if roles.Question != "" {
		i, ok := find(roles.Question)
		if !ok {
			return Columns{}, fmt.Errorf("%w: no column named %q", ErrSchema, roles.Question)
		}
		cols.Question = i
	}
	if roles.Answer != "" {
		i, ok := find(roles.Answer)
		if !ok {
			return Columns{}, fmt.Errorf("%w: no column named %q", ErrSchema, roles.Answer)
		}
		cols.Answer = i
	}
	if roles.Status != "" {
		i, ok := find(roles.Status)
		if !ok {
			return Columns{}, fmt.Errorf("%w: no column named %q", ErrSchema, roles.Status)
		}
		cols.Status = i
	}
	if roles.Corrected != "" {
		i, ok := find(roles.Corrected)
		if !ok {
			return Columns{}, fmt.Errorf("%w: no column named %q", ErrSchema, roles.Corrected)
		}
		cols.Corrected = i
	}

	return cols, nil
}

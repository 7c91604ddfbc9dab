// Package manifest reads the table that maps patients and classes to the
// segment subtrees an assembly run draws from.
package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/maastricht-university/ecg-beats/segment"
)

// Row declares that the artifacts under Path belong to the Class bucket.
type Row struct {
	Patient string
	Class   segment.Label
	Path    string
}

var columns = []string{"Patient", "Class", "path"}

func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a CSV manifest with a header row. Columns are located by name,
// so extra columns such as a leading index are ignored.
func Read(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	pos := make([]int, len(columns))
	for i, c := range columns {
		p, ok := idx[c]
		if !ok {
			return nil, fmt.Errorf("manifest: missing column %q", c)
		}
		pos[i] = p
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		field := func(i int) (string, error) {
			if pos[i] >= len(rec) {
				return "", fmt.Errorf("row %d: missing %s", line, columns[i])
			}
			return strings.TrimSpace(rec[pos[i]]), nil
		}
		patient, err := field(0)
		if err != nil {
			return nil, err
		}
		class, err := field(1)
		if err != nil {
			return nil, err
		}
		path, err := field(2)
		if err != nil {
			return nil, err
		}
		l, err := segment.ParseLabel(class)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		rows = append(rows, Row{Patient: patient, Class: l, Path: path})
	}
	return rows, nil
}

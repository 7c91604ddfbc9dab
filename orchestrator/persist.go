package orchestrator

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/maastricht-university/ecg-beats/segment"
)

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeDataset writes the balanced groups as training lines, S then V then N.
// An empty dataset still produces an (empty) file.
func writeDataset(path string, g Groups) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, l := range segment.Labels {
		for _, it := range g[l] {
			if _, err := w.Write(segment.EncodeLine(it.Samples, it.Label)); err != nil {
				f.Close()
				return err
			}
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func persist(s *Summary, g Groups) error {
	if err := writeDataset(s.Output, g); err != nil {
		return err
	}
	return writeJSON(s.Output+".summary.json", s)
}

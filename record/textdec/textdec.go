// Package textdec decodes sessions exported as text next to each other under a
// root directory:
//
//	<root>/<patient>/<patient>_s<session>.ann   one "sample,symbol" row per beat
//	<root>/<patient>/<patient>_s<session>.sig   sampling rate on the first row, then one sample per row
package textdec

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/maastricht-university/ecg-beats/record"
)

const (
	AnnExt = ".ann"
	SigExt = ".sig"
)

type Dir struct {
	root string
}

var _ record.Decoder = (*Dir)(nil)

func New(root string) *Dir { return &Dir{root: root} }

func (d *Dir) Files(k record.Key) []string {
	return []string{
		filepath.Join(k.PatientID(), k.Base()+AnnExt),
		filepath.Join(k.PatientID(), k.Base()+SigExt),
	}
}

func (d *Dir) path(k record.Key, ext string) string {
	return filepath.Join(d.root, k.PatientID(), k.Base()+ext)
}

func (d *Dir) Annotations(k record.Key) ([]record.AnnotatedEvent, error) {
	f, err := os.Open(d.path(k, AnnExt))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, record.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	r.TrimLeadingSpace = true

	var out []record.AnnotatedEvent
	for row := 0; ; row++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("annotations %s row %d: %w", k, row, err)
		}
		sample, err := strconv.Atoi(rec[0])
		if err != nil || sample < 0 {
			return nil, fmt.Errorf("annotations %s row %d: bad sample %q", k, row, rec[0])
		}
		if len(rec[1]) != 1 {
			return nil, fmt.Errorf("annotations %s row %d: bad symbol %q", k, row, rec[1])
		}
		out = append(out, record.AnnotatedEvent{Sample: sample, Symbol: rec[1][0]})
	}
	return out, nil
}

func (d *Dir) Waveform(k record.Key) (*record.Recording, error) {
	rec, err := d.waveform(k)
	if err != nil {
		return nil, &record.DecodeError{Key: k, Err: err}
	}
	return rec, nil
}

func (d *Dir) waveform(k record.Key) (*record.Recording, error) {
	f, err := os.Open(d.path(k, SigExt))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("missing sampling rate")
	}
	rate, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil || rate <= 0 {
		return nil, fmt.Errorf("bad sampling rate %q", sc.Text())
	}

	rec := &record.Recording{Key: k, Rate: rate}
	for line := 2; sc.Scan(); line++ {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec.Samples = append(rec.Samples, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

// WriteSession exports a session in the layout New reads. It is used to
// convert records produced by other tools and by tests.
func WriteSession(root string, k record.Key, events []record.AnnotatedEvent, rate int, samples []float64) error {
	dir := filepath.Join(root, k.PatientID())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	var ann strings.Builder
	w := csv.NewWriter(&ann)
	for _, e := range events {
		if err := w.Write([]string{strconv.Itoa(e.Sample), string(e.Symbol)}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, k.Base()+AnnExt), []byte(ann.String()), 0o644); err != nil {
		return err
	}

	var sig strings.Builder
	fmt.Fprintf(&sig, "%d\n", rate)
	for _, v := range samples {
		sig.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		sig.WriteByte('\n')
	}
	return os.WriteFile(filepath.Join(dir, k.Base()+SigExt), []byte(sig.String()), 0o644)
}

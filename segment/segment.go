// Package segment holds the on-disk contract between the extractor and the
// assembler: where a beat artifact lives, what it is called, how its samples
// are written, and how a balanced training line looks.
package segment

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/maastricht-university/ecg-beats/record"
)

type Label byte

const (
	Supraventricular Label = 'S'
	Ventricular      Label = 'V'
	Normal           Label = 'N'
)

// Labels is the fixed output order of a balanced dataset.
var Labels = []Label{Supraventricular, Ventricular, Normal}

func (l Label) Valid() bool {
	switch l {
	case Supraventricular, Ventricular, Normal:
		return true
	}
	return false
}

func (l Label) String() string { return string(rune(l)) }

// ParseLabel accepts exactly one of "S", "V", "N".
func ParseLabel(s string) (Label, error) {
	if len(s) != 1 || !Label(s[0]).Valid() {
		return 0, fmt.Errorf("unknown beat label %q", s)
	}
	return Label(s[0]), nil
}

// Segment is a slice of one recording around a beat. Ordinal is the event's
// position in the session once the edge events are dropped.
type Segment struct {
	Key     record.Key
	Ordinal int
	Label   Label
	Start   int
	End     int
	Samples []float64
}

const (
	DataDir = "segmented_data"
	Ext     = ".csv"
)

var (
	ErrBadName      = errors.New("not a segment artifact name")
	ErrEmptyContent = errors.New("segment artifact is empty")
)

// Dir is <root>/segmented_data/<label>/<patient>.
func Dir(root string, l Label, k record.Key) string {
	return filepath.Join(root, DataDir, l.String(), k.PatientID())
}

// FileName is <patient>_s<session:2>_beat_<ordinal:5>_<label>.csv.
func FileName(k record.Key, ordinal int, l Label) string {
	return fmt.Sprintf("%s_beat_%05d_%s%s", k.Base(), ordinal, l, Ext)
}

func Path(root string, s *Segment) string {
	return filepath.Join(Dir(root, s.Label, s.Key), FileName(s.Key, s.Ordinal, s.Label))
}

var nameRE = regexp.MustCompile(`^p(\d+)_s(\d+)_beat_(\d+)_([A-Za-z])\.csv$`)

// Name is the identity encoded in an artifact file name.
type Name struct {
	Key     record.Key
	Ordinal int
	Label   Label
}

// ParseName reads the identity back out of a base file name. The label is the
// trailing token before the extension and may be any letter; callers decide
// whether it is one they want.
func ParseName(base string) (Name, error) {
	m := nameRE.FindStringSubmatch(base)
	if m == nil {
		return Name{}, fmt.Errorf("%w: %s", ErrBadName, base)
	}
	var (
		n    = Name{Label: Label(m[4][0])}
		errs [3]error
	)
	n.Key.Patient, errs[0] = strconv.Atoi(m[1])
	n.Key.Session, errs[1] = strconv.Atoi(m[2])
	n.Ordinal, errs[2] = strconv.Atoi(m[3])
	if err := errors.Join(errs[:]...); err != nil {
		return Name{}, fmt.Errorf("%w: %s: %v", ErrBadName, base, err)
	}
	return n, nil
}

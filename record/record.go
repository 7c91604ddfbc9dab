// Package record describes one patient session as the extractor sees it: the
// beat annotations and the sampled waveform, both obtained through a Decoder.
package record

import (
	"errors"
	"fmt"
)

// Key addresses one session of one patient.
type Key struct {
	Patient int
	Session int
}

// PatientID is the zero-padded patient directory name, e.g. p00007.
func (k Key) PatientID() string { return fmt.Sprintf("p%05d", k.Patient) }

// Group is the archive bucket holding the patient, e.g. p00 for patients 0..999.
func (k Key) Group() string { return fmt.Sprintf("p%02d", k.Patient/1000) }

// Base is the record name shared by all files of the session, e.g. p00007_s03.
func (k Key) Base() string { return fmt.Sprintf("%s_s%02d", k.PatientID(), k.Session) }

func (k Key) String() string { return k.Base() }

// AnnotatedEvent marks a beat's fiducial sample and its clinical symbol.
type AnnotatedEvent struct {
	Sample int
	Symbol byte
}

// Recording is the waveform of one session. It is never mutated after decode.
type Recording struct {
	Key     Key
	Rate    int
	Samples []float64
}

// ErrNotFound reports that a session has no annotation artifact. Session
// numbering is sparse, so callers treat it as a normal gap.
var ErrNotFound = errors.New("record not found")

// DecodeError reports a waveform that could not be loaded although its
// annotations were present.
type DecodeError struct {
	Key Key
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder yields the annotations and waveform of a session.
//
// Annotations fails with ErrNotFound when the session has no annotation
// artifact. Waveform fails with a *DecodeError when the samples are missing or
// corrupt. Files lists the paths, relative to the decoder root, that a session
// is made of; it is what a mirror has to fetch.
type Decoder interface {
	Annotations(k Key) ([]AnnotatedEvent, error)
	Waveform(k Key) (*Recording, error)
	Files(k Key) []string
}

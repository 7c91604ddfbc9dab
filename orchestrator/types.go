package orchestrator

import (
	"time"

	"github.com/maastricht-university/ecg-beats/segment"
)

// Report counts what an extraction pass did. Each worker fills its own and the
// collector sums them.
type Report struct {
	Patients   int
	Sessions   int // decoded with annotations and waveform
	NotFound   int
	CannotLoad int
	Failed     int // other errors and recovered panics
	Written    int
	Existing   int
	Discarded  int // non S/V/N symbols and beats outside the waveform
}

func (r *Report) add(o Report) {
	r.Patients += o.Patients
	r.Sessions += o.Sessions
	r.NotFound += o.NotFound
	r.CannotLoad += o.CannotLoad
	r.Failed += o.Failed
	r.Written += o.Written
	r.Existing += o.Existing
	r.Discarded += o.Discarded
}

// Artifact is a discovered segment file together with the class its manifest
// row declared for it.
type Artifact struct {
	Path  string
	Name  segment.Name
	Class segment.Label
}

// Item is one accepted training example.
type Item struct {
	Samples []float64
	Label   segment.Label
	Source  string
}

type Groups map[segment.Label][]Item

// Summary describes one assembled dataset.
type Summary struct {
	RunID       string         `json:"run_id"`
	Dataset     string         `json:"dataset"`
	Manifest    string         `json:"manifest"`
	Output      string         `json:"output"`
	Cap         int            `json:"cap"`
	GeneratedAt time.Time      `json:"generated_at"`
	Discovered  int            `json:"discovered"`
	Accepted    map[string]int `json:"accepted"`
	Counts      map[string]int `json:"counts"`
}

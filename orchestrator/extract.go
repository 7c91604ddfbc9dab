package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	cfg "github.com/maastricht-university/ecg-beats/config"
	"github.com/maastricht-university/ecg-beats/record"
	"github.com/maastricht-university/ecg-beats/segment"
)

// Extractor cuts every annotated S/V/N beat of a patient range into its own
// artifact under the output root.
type Extractor struct {
	cfg *cfg.Root
	dec record.Decoder
	options
}

func NewExtractor(c *cfg.Root, dec record.Decoder, opts ...Option) *Extractor {
	return &Extractor{cfg: c, dec: dec, options: newOptions(opts)}
}

// Run fans the patient range out to the worker pool. Each patient is handled
// by exactly one worker; errors stay inside the session that raised them.
// Only a cancelled ctx stops the run early.
func (e *Extractor) Run(ctx context.Context) (Report, error) {
	pr := e.cfg.Extract.Patients
	w := cfg.Workers(e.cfg.Extract.Workers)
	bar := e.bar("Patients: ", pr.Len())

	jobs := make(chan int)
	results := make(chan Report, w)

	var wg sync.WaitGroup
	for i := 0; i < w; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				results <- e.ProcessPatient(ctx, p)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for p := pr.From; p < pr.To; p++ {
			select {
			case jobs <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var total Report
	for r := range results {
		bar.Increment()
		total.add(r)
	}
	if ctx.Err() != nil {
		bar.Abort(false)
	}

	e.log.WithFields(logrus.Fields{
		"patients":    total.Patients,
		"sessions":    total.Sessions,
		"not_found":   total.NotFound,
		"cannot_load": total.CannotLoad,
		"failed":      total.Failed,
		"written":     total.Written,
		"existing":    total.Existing,
		"discarded":   total.Discarded,
	}).Info("extraction complete")
	return total, ctx.Err()
}

// ProcessPatient walks the session probe range of one patient in order.
func (e *Extractor) ProcessPatient(ctx context.Context, patient int) Report {
	r := Report{Patients: 1}
	e.log.WithField("patient", patient).Info("patient")
	sr := e.cfg.Extract.Sessions
	for s := sr.From; s < sr.To; s++ {
		if ctx.Err() != nil {
			break
		}
		e.session(ctx, record.Key{Patient: patient, Session: s}, &r)
	}
	return r
}

func (e *Extractor) session(ctx context.Context, k record.Key, r *Report) {
	log := e.log.WithFields(logrus.Fields{"patient": k.Patient, "session": k.Session})
	defer func() {
		if v := recover(); v != nil {
			r.Failed++
			log.WithField("panic", v).Error("session aborted")
		}
	}()

	events, err := e.dec.Annotations(k)
	switch {
	case errors.Is(err, record.ErrNotFound):
		r.NotFound++
		log.Debugf("%s not found, skipping", k)
		return
	case err != nil:
		r.Failed++
		log.WithError(err).Error("annotations")
		return
	}

	rec, err := e.waveform(ctx, k, log)
	var de *record.DecodeError
	switch {
	case errors.As(err, &de):
		r.CannotLoad++
		log.WithError(de.Err).Warnf("%s cannot load", k)
		return
	case err != nil:
		r.Failed++
		log.WithError(err).Error("waveform")
		return
	}
	r.Sessions++

	for _, s := range e.cut(k, rec, events, r) {
		path, res, err := segment.Write(e.cfg.Paths.Output, s)
		if err != nil {
			r.Failed++
			log.WithError(err).WithField("file", path).Error("write segment")
			continue
		}
		switch res {
		case segment.Written:
			r.Written++
			log.Debugf("segment %d (%s) as %s", s.Ordinal, s.Label, segment.FileName(s.Key, s.Ordinal, s.Label))
		case segment.Exists:
			r.Existing++
		}
	}
}

// waveform decodes k and, when a fetcher is configured, mirrors the session
// from the archive once and retries after a decode failure.
func (e *Extractor) waveform(ctx context.Context, k record.Key, log logrus.FieldLogger) (*record.Recording, error) {
	rec, err := e.dec.Waveform(k)
	var de *record.DecodeError
	if e.http == nil || !errors.As(err, &de) {
		return rec, err
	}
	log.WithError(err).Info("mirroring from archive")
	if merr := e.http.Mirror(ctx, k, e.dec.Files(k), e.cfg.Paths.Input); merr != nil {
		log.WithError(merr).Warn("mirror")
		return nil, err
	}
	return e.dec.Waveform(k)
}

// cut turns the annotated events of one recording into segments. The first
// two and last two events never qualify. Ordinals count positions among the
// remaining events, including the ones whose symbol is then dropped.
func (e *Extractor) cut(k record.Key, rec *record.Recording, events []record.AnnotatedEvent, r *Report) []*segment.Segment {
	inner := trimEdges(events)
	if len(inner) == 0 {
		return nil
	}
	pre, post := segment.HalfWidths(e.cfg.Extract.Window.Before, e.cfg.Extract.Window.After, rec.Rate)

	var out []*segment.Segment
	for ord, ev := range inner {
		l := segment.Label(ev.Symbol)
		if !l.Valid() {
			r.Discarded++
			continue
		}
		start, end := segment.Bounds(ev.Sample, pre, post, len(rec.Samples))
		if start >= end {
			r.Discarded++
			e.log.WithField("record", k.String()).Debugf("beat %d at sample %d lies outside the waveform", ord, ev.Sample)
			continue
		}
		out = append(out, &segment.Segment{
			Key:     k,
			Ordinal: ord,
			Label:   l,
			Start:   start,
			End:     end,
			Samples: rec.Samples[start:end],
		})
	}
	return out
}

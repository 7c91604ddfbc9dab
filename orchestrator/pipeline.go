package orchestrator

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/maastricht-university/ecg-beats/clients"
)

type options struct {
	log      logrus.FieldLogger
	progress *mpb.Progress
	http     *clients.HTTP
}

type Option func(*options)

func WithLogger(l logrus.FieldLogger) Option { return func(o *options) { o.log = l } }

// WithProgress draws a bar per stage on p.
func WithProgress(p *mpb.Progress) Option { return func(o *options) { o.progress = p } }

// WithFetcher turns on the archive fallback for sessions whose waveform cannot
// be decoded.
func WithFetcher(h *clients.HTTP) Option { return func(o *options) { o.http = h } }

func newOptions(opts []Option) options {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = l
	}
	return o
}

type bar interface {
	Increment()
	Abort(drop bool)
}

type nopBar struct{}

func (nopBar) Increment()      {}
func (nopBar) Abort(drop bool) {}

// bar adds a progress bar for total units of work. A bar with no work would
// never complete and would hold up (*mpb.Progress).Wait, so none is drawn.
func (o options) bar(name string, total int) bar {
	if o.progress == nil || total <= 0 {
		return nopBar{}
	}
	return o.progress.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(name),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)
}

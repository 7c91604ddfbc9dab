package orchestrator

import (
	"context"
	"io/fs"
	"math/rand"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	cfg "github.com/maastricht-university/ecg-beats/config"
	"github.com/maastricht-university/ecg-beats/manifest"
	"github.com/maastricht-university/ecg-beats/segment"
)

// Assembler turns the segment trees named by a manifest into one balanced,
// shuffled training file.
type Assembler struct {
	cfg *cfg.Root
	options
}

func NewAssembler(c *cfg.Root, opts ...Option) *Assembler {
	return &Assembler{cfg: c, options: newOptions(opts)}
}

// Run assembles every configured dataset in turn.
func (a *Assembler) Run(ctx context.Context) ([]*Summary, error) {
	var out []*Summary
	for _, d := range a.cfg.Assemble.Datasets {
		s, err := a.Assemble(ctx, d)
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Assemble builds one dataset. Only an unreadable manifest, a cancelled ctx or
// a failure to write the output is an error; unreadable artifacts are skipped.
func (a *Assembler) Assemble(ctx context.Context, d cfg.Dataset) (*Summary, error) {
	s := &Summary{
		RunID:    uuid.NewString(),
		Dataset:  d.Name,
		Manifest: d.Manifest,
		Output:   d.Output,
		Cap:      d.Cap,
	}
	log := a.log.WithFields(logrus.Fields{"run": s.RunID, "dataset": d.Name})

	rows, err := manifest.ReadFile(d.Manifest)
	if err != nil {
		return nil, err
	}
	arts := a.Discover(rows)
	s.Discovered = len(arts)
	log.WithField("artifacts", len(arts)).Info("discovered")

	groups, err := a.collect(ctx, arts)
	if err != nil {
		return nil, err
	}
	s.Accepted = counts(groups)

	seed := a.cfg.Assemble.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	balanced := Balance(groups, d.Cap, rand.New(rand.NewSource(seed)))
	s.Counts = counts(balanced)
	s.GeneratedAt = time.Now()

	if err := persist(s, balanced); err != nil {
		return nil, err
	}
	log.WithField("file", d.Output).Info("TS file created")
	for _, l := range segment.Labels {
		log.Infof("Number of '%s' labels: %d", l, s.Counts[l.String()])
	}
	return s, nil
}

// Discover walks every manifest root for segment artifacts. A root that cannot
// be walked is logged and skipped, as is any entry below it that cannot be
// read; the rest of the root is still walked.
func (a *Assembler) Discover(rows []manifest.Row) []Artifact {
	var out []Artifact
	for _, row := range rows {
		err := filepath.WalkDir(row.Path, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == row.Path {
					return err
				}
				a.log.WithError(err).WithField("path", path).Warn("skipping unreadable entry")
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			n, perr := segment.ParseName(d.Name())
			if perr != nil {
				return nil
			}
			out = append(out, Artifact{Path: path, Name: n, Class: row.Class})
			return nil
		})
		if err != nil {
			a.log.WithError(err).WithFields(logrus.Fields{"patient": row.Patient, "path": row.Path}).Warn("walk manifest root")
		}
	}
	return out
}

// collect reads the accepted artifacts on a bounded pool and groups them by
// label in completion order.
func (a *Assembler) collect(ctx context.Context, arts []Artifact) (Groups, error) {
	bar := a.bar("Reading: ", len(arts))
	results := make(chan *Item)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers(a.cfg.Assemble.Workers))
	go func() {
		for _, art := range arts {
			art := art
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				it := a.read(art)
				select {
				case results <- it:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		g.Wait()
		close(results)
	}()

	groups := make(Groups, len(segment.Labels))
	for it := range results {
		bar.Increment()
		if it == nil {
			continue
		}
		groups[it.Label] = append(groups[it.Label], *it)
	}
	if err := ctx.Err(); err != nil {
		bar.Abort(false)
		return nil, err
	}
	// completion order varies between runs; a fixed order keeps a seeded
	// shuffle reproducible
	for _, items := range groups {
		sort.Slice(items, func(i, j int) bool { return items[i].Source < items[j].Source })
	}
	return groups, nil
}

// read returns nil for artifacts whose label disagrees with their manifest
// row and for empty or unreadable content.
func (a *Assembler) read(art Artifact) *Item {
	if art.Name.Label != art.Class {
		a.log.WithFields(logrus.Fields{"file": art.Path, "label": art.Name.Label, "class": art.Class}).Debug("label mismatch")
		return nil
	}
	samples, err := segment.Read(art.Path)
	if err != nil {
		a.log.WithError(err).WithField("file", art.Path).Warn("error reading")
		return nil
	}
	return &Item{Samples: samples, Label: art.Name.Label, Source: art.Path}
}

func counts(g Groups) map[string]int {
	out := make(map[string]int, len(segment.Labels))
	for _, l := range segment.Labels {
		out[l.String()] = len(g[l])
	}
	return out
}

package main

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/maastricht-university/ecg-beats/clients"
	cfg "github.com/maastricht-university/ecg-beats/config"
	"github.com/maastricht-university/ecg-beats/orchestrator"
	"github.com/maastricht-university/ecg-beats/record"
	"github.com/maastricht-university/ecg-beats/record/textdec"
)

func newExtractCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Cut every S/V/N beat of the configured patient range into segment files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(v)
			if err != nil {
				return err
			}
			defer a.close()
			if a.workers > 0 {
				a.conf.Extract.Workers = a.workers
			}

			opts := []orchestrator.Option{orchestrator.WithLogger(a.log)}
			if a.progress != nil {
				opts = append(opts, orchestrator.WithProgress(a.progress))
			}
			if a.conf.Fetch.Enabled {
				opts = append(opts, orchestrator.WithFetcher(clients.NewHTTP(a.conf.Fetch.BaseURL, a.conf.Fetch.Timeout)))
			}
			dec := textdec.New(a.conf.Paths.Input)
			_, err = orchestrator.NewExtractor(a.conf, dec, opts...).Run(cmd.Context())
			if err == nil {
				a.log.Info("Complete")
			}
			return err
		},
	}
}

func newAssembleCmd(v *viper.Viper) *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Build balanced training files from the configured manifests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(v)
			if err != nil {
				return err
			}
			defer a.close()
			if a.workers > 0 {
				a.conf.Assemble.Workers = a.workers
			}
			if len(only) > 0 {
				a.conf.Assemble.Datasets = filterDatasets(a.conf.Assemble.Datasets, only)
				if len(a.conf.Assemble.Datasets) == 0 {
					return errors.New("no dataset matches --dataset")
				}
			}

			opts := []orchestrator.Option{orchestrator.WithLogger(a.log)}
			if a.progress != nil {
				opts = append(opts, orchestrator.WithProgress(a.progress))
			}
			_, err = orchestrator.NewAssembler(a.conf, opts...).Run(cmd.Context())
			return err
		},
	}
	cmd.Flags().StringSliceVar(&only, "dataset", nil, "assemble only the named datasets")
	return cmd
}

func filterDatasets(all []cfg.Dataset, names []string) []cfg.Dataset {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.TrimSpace(n)] = true
	}
	var out []cfg.Dataset
	for _, d := range all {
		if want[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

func newDownloadCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Mirror the configured patient and session range from the remote archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(v)
			if err != nil {
				return err
			}
			defer a.close()
			if a.workers > 0 {
				a.conf.Fetch.Workers = a.workers
			}
			_, err = download(cmd.Context(), a.conf, a.log)
			return err
		},
	}
}

// download mirrors each session of the range and returns how many it got.
// Failed fetches are logged and skipped: most session slots do not exist on
// the archive.
func download(ctx context.Context, conf *cfg.Root, log logrus.FieldLogger) (int, error) {
	if conf.Fetch.BaseURL == "" {
		return 0, errors.New("fetch.base_url is not set")
	}
	h := clients.NewHTTP(conf.Fetch.BaseURL, conf.Fetch.Timeout)
	dec := textdec.New(conf.Paths.Input)
	var tried, mirrored atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers(conf.Fetch.Workers))
	pr, sr := conf.Extract.Patients, conf.Extract.Sessions
	for p := pr.From; p < pr.To && gctx.Err() == nil; p++ {
		for s := sr.From; s < sr.To && gctx.Err() == nil; s++ {
			k := record.Key{Patient: p, Session: s}
			g.Go(func() error {
				tried.Add(1)
				if err := h.Mirror(gctx, k, dec.Files(k), conf.Paths.Input); err != nil {
					log.WithError(err).WithField("record", k.String()).Debug("download")
					return nil
				}
				mirrored.Add(1)
				log.WithField("record", k.String()).Info("Downloaded")
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return int(mirrored.Load()), err
	}
	n := int(mirrored.Load())
	entry := log.WithFields(logrus.Fields{"sessions": tried.Load(), "mirrored": n, "base_url": conf.Fetch.BaseURL})
	if n == 0 && tried.Load() > 0 {
		entry.Warn("no session mirrored; base_url must serve .ann/.sig text exports")
	} else {
		entry.Info("download complete")
	}
	return n, ctx.Err()
}

func newConfigCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(v)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(conf)
		},
	}
}

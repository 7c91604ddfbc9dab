package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vbauerster/mpb/v8"

	cfg "github.com/maastricht-university/ecg-beats/config"
	"github.com/maastricht-university/ecg-beats/logsink"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:           "ecg-beats",
		Short:         "Cut annotated ECG recordings into beat segments and assemble balanced training sets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default config/$CONFIG_ENV/config.yaml)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.Bool("progress", false, "draw progress bars")
	pf.Int("workers", 0, "worker pool size for the selected stage (0 = config/CPU count)")
	_ = v.BindPFlags(pf)
	v.SetEnvPrefix("ECGBEATS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.AddCommand(
		newExtractCmd(v),
		newAssembleCmd(v),
		newDownloadCmd(v),
		newConfigCmd(v),
	)
	return root
}

// app is what every subcommand runs with: the effective config and the
// run's logger, both built from file, env and flags.
type app struct {
	conf     *cfg.Root
	log      *logrus.Logger
	sink     *logsink.Sink
	progress *mpb.Progress
	workers  int
}

func loadConfig(v *viper.Viper) (*cfg.Root, error) {
	var (
		conf *cfg.Root
		err  error
	)
	if p := v.GetString("config"); p != "" {
		conf, err = cfg.LoadFile(p)
	} else {
		conf, err = cfg.Load()
		if errors.Is(err, os.ErrNotExist) {
			conf, err = cfg.Default(), nil
		}
	}
	if err != nil {
		return nil, err
	}
	if v.IsSet("log-level") {
		conf.Pipeline.LogLvl = v.GetString("log-level")
	}
	if v.IsSet("progress") {
		conf.Pipeline.Progress = v.GetBool("progress")
	}
	return conf, conf.Validate()
}

func setup(v *viper.Viper) (*app, error) {
	conf, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	a := &app{conf: conf, workers: v.GetInt("workers")}

	// bars on stdout, log lines on stderr
	if conf.Pipeline.Progress {
		a.progress = mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stdout))
	}
	a.sink = logsink.New(os.Stderr)
	a.log, err = logsink.Logger(a.sink, conf.Pipeline.LogLvl)
	if err != nil {
		a.sink.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	a.sink.Close()
	if a.progress != nil {
		a.progress.Wait()
	}
}

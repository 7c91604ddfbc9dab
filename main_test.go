package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	cfg "github.com/maastricht-university/ecg-beats/config"
	"github.com/maastricht-university/ecg-beats/record"
	"github.com/maastricht-university/ecg-beats/record/textdec"
	"github.com/maastricht-university/ecg-beats/segment"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestConfigCmd(t *testing.T) {
	p := writeConfig(t, t.TempDir(), "paths:\n  input: /in\n  output: /out\n")

	out, err := execute(t, "config", "--config", p, "--log-level", "debug")
	require.NoError(t, err)

	var got cfg.Root
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "/in", got.Paths.Input)
	assert.Equal(t, "debug", got.Pipeline.LogLvl)
	assert.Equal(t, cfg.Default().Extract.Window, got.Extract.Window)
}

func TestConfigCmd_EnvOverride(t *testing.T) {
	p := writeConfig(t, t.TempDir(), "pipeline:\n  log_level: info\n")
	t.Setenv("ECGBEATS_LOG_LEVEL", "warn")

	out, err := execute(t, "config", "--config", p)
	require.NoError(t, err)
	assert.Contains(t, out, "log_level: warn")
}

func TestConfigCmd_Invalid(t *testing.T) {
	p := writeConfig(t, t.TempDir(), "extract:\n  patients: { from: 10, to: 2 }\n")
	_, err := execute(t, "config", "--config", p)
	assert.ErrorContains(t, err, "extract.patients")
}

func TestExtractThenAssemble(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in"), filepath.Join(dir, "out")
	syms := map[int]string{1: "NNSSVVNNNN", 2: "NNVVSSNNNN", 3: "NNNNSVNN"}
	for p, s := range syms {
		var events []record.AnnotatedEvent
		for i := range s {
			events = append(events, record.AnnotatedEvent{Sample: 100 + i*150, Symbol: s[i]})
		}
		samples := make([]float64, 2000)
		for i := range samples {
			samples[i] = float64(p) + float64(i)/1e4
		}
		require.NoError(t, textdec.WriteSession(in, record.Key{Patient: p, Session: 2}, events, 250, samples))
	}

	var m strings.Builder
	m.WriteString("Patient,Class,path\n")
	for p := range syms {
		for _, l := range segment.Labels {
			fmt.Fprintf(&m, "p%05d,%s,%s\n", p, l, segment.Dir(out, l, record.Key{Patient: p}))
		}
	}
	manifestPath := filepath.Join(dir, "X_train.csv")
	require.NoError(t, os.WriteFile(manifestPath, []byte(m.String()), 0o644))

	ts := filepath.Join(dir, "ts_files", "train_m.ts")
	p := writeConfig(t, dir, fmt.Sprintf(`
pipeline:
  log_level: error
paths:
  input: %s
  output: %s
extract:
  patients: { from: 0, to: 5 }
  sessions: { from: 0, to: 4 }
assemble:
  seed: 3
  datasets:
    - name: train
      manifest: %s
      output: %s
      cap: 2000
`, in, out, manifestPath, ts))

	_, err := execute(t, "extract", "--config", p, "--workers", "2")
	require.NoError(t, err)
	_, err = execute(t, "assemble", "--config", p, "--dataset", "train")
	require.NoError(t, err)

	b, err := os.ReadFile(ts)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	// S: 2+2+1, V: 2+2+1, N: 2+2+2
	require.Len(t, lines, 15)
	counts := map[string]int{}
	for _, l := range lines {
		counts[l[len(l)-1:]]++
	}
	assert.Equal(t, map[string]int{"S": 5, "V": 5, "N": 5}, counts)

	_, err = execute(t, "assemble", "--config", p, "--dataset", "nope")
	assert.ErrorContains(t, err, "no dataset matches")
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/p00/p00001/p00001_s00.ann":
			_, _ = w.Write([]byte("10,N\n"))
		case "/p00/p00001/p00001_s00.sig":
			_, _ = w.Write([]byte("250\n0.1\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := cfg.Default()
	c.Paths.Input = t.TempDir()
	c.Extract.Patients = cfg.Range{From: 0, To: 3}
	c.Extract.Sessions = cfg.Range{From: 0, To: 2}
	c.Fetch.BaseURL = srv.URL
	c.Fetch.Workers = 2
	l := logrus.New()
	l.SetOutput(io.Discard)

	n, err := download(context.Background(), c, l)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	dec := textdec.New(c.Paths.Input)
	events, err := dec.Annotations(record.Key{Patient: 1, Session: 0})
	require.NoError(t, err)
	assert.Equal(t, []record.AnnotatedEvent{{Sample: 10, Symbol: 'N'}}, events)
	_, err = dec.Annotations(record.Key{Patient: 2, Session: 1})
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestDownload_WFDBOnlyArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch path.Ext(r.URL.Path) {
		case ".atr", ".dat", ".hea":
			_, _ = w.Write([]byte("wfdb"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := cfg.Default()
	c.Paths.Input = t.TempDir()
	c.Extract.Patients = cfg.Range{From: 0, To: 2}
	c.Extract.Sessions = cfg.Range{From: 0, To: 2}
	c.Fetch.BaseURL = srv.URL
	buf := &bytes.Buffer{}
	l := logrus.New()
	l.SetOutput(buf)

	n, err := download(context.Background(), c, l)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, buf.String(), "level=warning")
	assert.Contains(t, buf.String(), "no session mirrored")

	entries, err := os.ReadDir(c.Paths.Input)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownload_NoBaseURL(t *testing.T) {
	c := cfg.Default()
	c.Paths.Input = t.TempDir()
	_, err := download(context.Background(), c, logrus.New())
	assert.ErrorContains(t, err, "fetch.base_url")
}

func TestLoadConfig_MalformedFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config", "dev", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("paths:\n  input: /mydata\n extract: [\n"), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("CONFIG_ENV", "")

	_, err = loadConfig(viper.New())
	require.Error(t, err)
	assert.NotErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.Remove(p))
	conf, err := loadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, cfg.Default().Paths, conf.Paths)
}

func TestFilterDatasets(t *testing.T) {
	all := cfg.Default().Assemble.Datasets
	assert.Len(t, filterDatasets(all, []string{"train"}), 1)
	assert.Len(t, filterDatasets(all, []string{" test", "train"}), 2)
	assert.Empty(t, filterDatasets(all, []string{"validation"}))
}

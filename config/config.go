package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

type Range struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

func (r Range) Len() int {
	if r.To <= r.From {
		return 0
	}
	return r.To - r.From
}

type Window struct {
	Before time.Duration `yaml:"before"`
	After  time.Duration `yaml:"after"`
}

type Extract struct {
	Patients Range `yaml:"patients"`
	Sessions Range `yaml:"sessions"`
	Window   Window `yaml:"window"`
	Workers  int    `yaml:"workers"`
}

type Dataset struct {
	Name     string `yaml:"name"`
	Manifest string `yaml:"manifest"`
	Output   string `yaml:"output"`
	Cap      int    `yaml:"cap"`
}

type Assemble struct {
	Workers  int       `yaml:"workers"`
	Seed     int64     `yaml:"seed"`
	Datasets []Dataset `yaml:"datasets"`
}

// Fetch points at a mirror of the decoder's text exports. The public archive
// only hosts the WFDB .atr/.dat/.hea files, so it has no default.
type Fetch struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Workers int           `yaml:"workers"`
}

type Root struct {
	Pipeline struct {
		Name     string `yaml:"name"`
		Version  string `yaml:"version"`
		LogLvl   string `yaml:"log_level"`
		Progress bool   `yaml:"progress"`
	} `yaml:"pipeline"`
	Paths struct {
		Input  string `yaml:"input"`
		Output string `yaml:"output"`
	} `yaml:"paths"`
	Extract  Extract  `yaml:"extract"`
	Assemble Assemble `yaml:"assemble"`
	Fetch    Fetch    `yaml:"fetch"`
}

// Default mirrors the batch the pipeline was first run with: 1000 patients,
// 50 session slots each, 0.4s/0.7s windows and a test (500) and train (2000)
// dataset.
func Default() *Root {
	var c Root
	c.Pipeline.Name = "ecg-beats"
	c.Pipeline.Version = "0.1.0"
	c.Pipeline.LogLvl = "info"
	c.Paths.Input = filepath.Join("data", "p00")
	c.Paths.Output = filepath.Join("data", "p00")
	c.Extract = Extract{
		Patients: Range{From: 0, To: 1000},
		Sessions: Range{From: 0, To: 50},
		Window:   Window{Before: 400 * time.Millisecond, After: 700 * time.Millisecond},
		Workers:  runtime.NumCPU(),
	}
	c.Assemble = Assemble{
		Workers: runtime.NumCPU(),
		Datasets: []Dataset{
			{Name: "test", Manifest: "X_test.csv", Output: filepath.Join("ts_files", "test_m.ts"), Cap: 500},
			{Name: "train", Manifest: "X_train.csv", Output: filepath.Join("ts_files", "train_m.ts"), Cap: 2000},
		},
	}
	c.Fetch = Fetch{
		Timeout: 60 * time.Second,
		Workers: 4,
	}
	return &c
}

// Load reads config/$CONFIG_ENV/config.yaml, with CONFIG_ENV defaulting to
// dev. Only a missing file yields an error matching fs.ErrNotExist.
func Load() (*Root, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(filepath.Join("config", env, "config.yaml"))
}

// LoadFile decodes path on top of Default, so a file only needs the keys it
// changes.
func LoadFile(path string) (*Root, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg := Default()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Root) Validate() error {
	var errs []error
	if c.Paths.Input == "" {
		errs = append(errs, errors.New("paths.input is empty"))
	}
	if c.Paths.Output == "" {
		errs = append(errs, errors.New("paths.output is empty"))
	}
	if c.Extract.Patients.From < 0 || c.Extract.Patients.To < c.Extract.Patients.From {
		errs = append(errs, fmt.Errorf("extract.patients: bad range [%d, %d)", c.Extract.Patients.From, c.Extract.Patients.To))
	}
	if c.Extract.Sessions.From < 0 || c.Extract.Sessions.To < c.Extract.Sessions.From {
		errs = append(errs, fmt.Errorf("extract.sessions: bad range [%d, %d)", c.Extract.Sessions.From, c.Extract.Sessions.To))
	}
	if c.Extract.Window.Before <= 0 || c.Extract.Window.After <= 0 {
		errs = append(errs, errors.New("extract.window: durations must be positive"))
	}
	for i, d := range c.Assemble.Datasets {
		if d.Manifest == "" || d.Output == "" {
			errs = append(errs, fmt.Errorf("assemble.datasets[%d]: manifest and output are required", i))
		}
		if d.Cap < 0 {
			errs = append(errs, fmt.Errorf("assemble.datasets[%d]: negative cap", i))
		}
	}
	if c.Fetch.Enabled && c.Fetch.BaseURL == "" {
		errs = append(errs, errors.New("fetch.base_url is required when fetch is enabled"))
	}
	return errors.Join(errs...)
}

// Workers falls back to the CPU count for unset pool sizes.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

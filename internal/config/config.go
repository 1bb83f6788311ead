// Package config loads the YAML configuration of the recognition engine and
// the command line tools.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/signtalk/internal/engine"
	"github.com/ayusman/signtalk/internal/labels"
	"github.com/ayusman/signtalk/internal/motion"
)

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

type Store struct {
	Path string `yaml:"path"`
}

type Window struct {
	Frames  int     `yaml:"frames"`
	MinFill float64 `yaml:"min_fill"`
}

type Motion struct {
	// Tracked maps landmark ids to their speed weight.
	Tracked map[int]float64   `yaml:"tracked"`
	Peaks   motion.PeakParams `yaml:"peaks"`
}

type Votes struct {
	Window          int     `yaml:"window"`
	BaseMajorityMin float64 `yaml:"base_majority_min"`
	MinPeaks        int     `yaml:"min_peaks"`
}

type Display struct {
	HoldFrames int `yaml:"hold_frames"`
}

type Path struct {
	MinConfidence float64 `yaml:"min_confidence"`
}

type Session struct {
	SuccessConfidence float64       `yaml:"success_confidence"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
}

// Labels overrides the built-in Korean fingerspelling tables when Names is
// set.
type Labels struct {
	Names      []string          `yaml:"names"`
	Promotions map[string]string `yaml:"promotions"`
	Sequence   []string          `yaml:"sequence"`
}

// ModelServer configures an external classifier process. Without a command
// the engine uses the templates from the store.
type ModelServer struct {
	Command     []string      `yaml:"command"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

type Config struct {
	Log         Log         `yaml:"log"`
	Store       Store       `yaml:"store"`
	Window      Window      `yaml:"window"`
	Motion      Motion      `yaml:"motion"`
	Votes       Votes       `yaml:"votes"`
	Display     Display     `yaml:"display"`
	Static      Path        `yaml:"static"`
	Sequence    Path        `yaml:"sequence"`
	Session     Session     `yaml:"session"`
	Labels      Labels      `yaml:"labels"`
	ModelServer ModelServer `yaml:"model_server"`
}

// Default returns the built-in configuration.
func Default() *Config {
	p := engine.DefaultParams()
	return &Config{
		Log:    Log{Level: "info", Format: "text"},
		Store:  Store{Path: "signtalk.db"},
		Window: Window{Frames: p.WindowFrames, MinFill: p.MinFill},
		Motion: Motion{
			Tracked: motion.DefaultWeights(),
			Peaks:   p.Peaks,
		},
		Votes: Votes{
			Window:          p.VoteWindow,
			BaseMajorityMin: p.BaseMajorityMin,
			MinPeaks:        p.MinPeaks,
		},
		Display:  Display{HoldFrames: p.HoldFrames},
		Static:   Path{MinConfidence: p.StaticMinConfidence},
		Sequence: Path{MinConfidence: p.SequenceMinConfidence},
		Session: Session{
			SuccessConfidence: p.SuccessConfidence,
			IdleTimeout:       10 * time.Minute,
		},
		ModelServer: ModelServer{IdleTimeout: 30 * time.Second},
	}
}

// Load reads path over the defaults and validates the result. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := cfg.decode(f); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	// yaml merges into non-nil maps; the tracked set is replaced, not merged.
	tracked := c.Motion.Tracked
	c.Motion.Tracked = nil

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if c.Motion.Tracked == nil {
		c.Motion.Tracked = tracked
	}
	return nil
}

// Validate checks that the configuration builds a working engine.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.Log.Format)
	}
	if err := c.EngineParams().Validate(); err != nil {
		return err
	}
	if _, err := c.Tracker(); err != nil {
		return err
	}
	if _, err := c.LabelSet(); err != nil {
		return err
	}
	if c.Session.IdleTimeout < 0 {
		return fmt.Errorf("session idle timeout must not be negative")
	}
	return nil
}

// EngineParams converts the configuration to engine parameters.
func (c *Config) EngineParams() engine.Params {
	return engine.Params{
		WindowFrames:          c.Window.Frames,
		MinFill:               c.Window.MinFill,
		VoteWindow:            c.Votes.Window,
		Peaks:                 c.Motion.Peaks,
		BaseMajorityMin:       c.Votes.BaseMajorityMin,
		MinPeaks:              c.Votes.MinPeaks,
		HoldFrames:            c.Display.HoldFrames,
		StaticMinConfidence:   c.Static.MinConfidence,
		SequenceMinConfidence: c.Sequence.MinConfidence,
		SuccessConfidence:     c.Session.SuccessConfidence,
	}
}

// Tracker builds the motion tracker.
func (c *Config) Tracker() (*motion.Tracker, error) {
	return motion.NewTracker(c.Motion.Tracked)
}

// LabelSet builds the label tables, falling back to Korean fingerspelling.
func (c *Config) LabelSet() (*labels.Set, error) {
	if len(c.Labels.Names) == 0 {
		return labels.DefaultKSL(), nil
	}
	return labels.NewSet(c.Labels.Names, c.Labels.Promotions, c.Labels.Sequence)
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHorizon   = 10
	DefaultDt        = 0.01
	DefaultQSlack    = 1e3
	DefaultMaxIter   = 4000
	DefaultEpsAbs    = 1e-3
	DefaultEpsRel    = 1e-3
	DefaultWarmStart = true
)

// Config is bilinear MPC configuration.
// Bounds, weights and reference are expressed in physical units:
// state vectors have ny elements, control vectors nu elements.
type Config struct {
	// Horizon is the number of prediction steps N
	Horizon int `yaml:"horizon"`
	// Dt is the control timestep
	Dt float64 `yaml:"dt"`
	// UMin and UMax are control bounds
	UMin []float64 `yaml:"umin"`
	UMax []float64 `yaml:"umax"`
	// XMin and XMax are state bounds
	XMin []float64 `yaml:"xmin"`
	XMax []float64 `yaml:"xmax"`
	// Q, R and QN are state, control and terminal state weights:
	// either the diagonal or the full matrix in row-major order
	Q  []float64 `yaml:"q"`
	R  []float64 `yaml:"r"`
	QN []float64 `yaml:"qn"`
	// XR is the reference: either one state or N+1 states one after another
	XR []float64 `yaml:"xr"`
	// TerminalConstraint pins the terminal state to the reference
	TerminalConstraint bool `yaml:"terminal_constraint"`
	// AddSlack softens state bounds with slack variables weighted by QSlack
	AddSlack bool    `yaml:"add_slack"`
	QSlack   float64 `yaml:"q_slack"`
	// Solver configures the QP solver
	Solver SolverConfig `yaml:"solver"`
}

// SolverConfig is QP solver configuration
type SolverConfig struct {
	WarmStart bool    `yaml:"warm_start"`
	Polish    bool    `yaml:"polish"`
	Verbose   bool    `yaml:"verbose"`
	MaxIter   int     `yaml:"max_iter"`
	EpsAbs    float64 `yaml:"eps_abs"`
	EpsRel    float64 `yaml:"eps_rel"`
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	return &Config{
		Horizon: DefaultHorizon,
		Dt:      DefaultDt,
		QSlack:  DefaultQSlack,
		Solver: SolverConfig{
			WarmStart: DefaultWarmStart,
			MaxIter:   DefaultMaxIter,
			EpsAbs:    DefaultEpsAbs,
			EpsRel:    DefaultEpsRel,
		},
	}
}

// Load reads YAML configuration from path on top of defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse decodes YAML configuration data on top of defaults.
// Keys which do not map to any configuration field are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration against nu inputs and ny physical states.
// Empty bounds, weights and reference are allowed.
func (c *Config) Validate(nu, ny int) error {
	if c.Horizon <= 0 {
		return fmt.Errorf("invalid horizon: %d", c.Horizon)
	}

	if c.Dt <= 0 {
		return fmt.Errorf("invalid timestep: %v", c.Dt)
	}

	if c.QSlack < 0 {
		return fmt.Errorf("invalid slack weight: %v", c.QSlack)
	}

	bounds := []struct {
		name string
		v    []float64
		n    int
	}{
		{"umin", c.UMin, nu},
		{"umax", c.UMax, nu},
		{"xmin", c.XMin, ny},
		{"xmax", c.XMax, ny},
	}
	for _, b := range bounds {
		if len(b.v) != 0 && len(b.v) != b.n {
			return fmt.Errorf("invalid %s length: %d != %d", b.name, len(b.v), b.n)
		}
	}

	for i := range c.UMin {
		if i < len(c.UMax) && c.UMin[i] > c.UMax[i] {
			return fmt.Errorf("invalid control bounds %d: %v > %v", i, c.UMin[i], c.UMax[i])
		}
	}

	for i := range c.XMin {
		if i < len(c.XMax) && c.XMin[i] > c.XMax[i] {
			return fmt.Errorf("invalid state bounds %d: %v > %v", i, c.XMin[i], c.XMax[i])
		}
	}

	weights := []struct {
		name string
		v    []float64
		n    int
	}{
		{"q", c.Q, ny},
		{"r", c.R, nu},
		{"qn", c.QN, ny},
	}
	for _, w := range weights {
		if len(w.v) == 0 {
			continue
		}
		if _, err := Weight(w.v, w.n); err != nil {
			return fmt.Errorf("invalid %s: %w", w.name, err)
		}
	}

	if n := len(c.XR); n != 0 && n != ny && n != (c.Horizon+1)*ny {
		return fmt.Errorf("invalid reference length: %d", n)
	}

	return nil
}

// Weight builds n x n weight matrix from its diagonal or its full row-major data.
// It returns error if w length is neither n nor n*n.
func Weight(w []float64, n int) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid weight dimension: %d", n)
	}

	switch len(w) {
	case n:
		m := mat.NewDense(n, n, nil)
		for i, v := range w {
			m.Set(i, i, v)
		}
		return m, nil
	case n * n:
		data := make([]float64, n*n)
		copy(data, w)
		return mat.NewDense(n, n, data), nil
	}

	return nil, fmt.Errorf("invalid weight length %d for dimension %d", len(w), n)
}

// Reference returns the reference trajectory as (N+1) x ny matrix.
// A single reference state is repeated over the horizon.
func (c *Config) Reference(ny int) (*mat.Dense, error) {
	n := c.Horizon + 1
	ref := mat.NewDense(n, ny, nil)

	switch len(c.XR) {
	case 0:
		return ref, nil
	case ny:
		for i := 0; i < n; i++ {
			ref.SetRow(i, c.XR)
		}
		return ref, nil
	case n * ny:
		ref.Copy(mat.NewDense(n, ny, c.XR))
		return ref, nil
	}

	return nil, fmt.Errorf("invalid reference length: %d", len(c.XR))
}

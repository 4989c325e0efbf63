// Package config handles YAML configuration parsing.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"seatrace/internal/collector"
	"seatrace/internal/credentials"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvAPIURL    = "API_URL"
	EnvBasicAuth = "BASIC_AUTH"
)

// Defaults applied by Load for fields left empty.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultUserAgent       = "seatrace/1.0"
	DefaultEventID         = 1
	DefaultResetSettle     = 2 * time.Second
	DefaultConfirmDelay    = 500 * time.Millisecond
	DefaultMaxDuration     = 30 * time.Minute
	DefaultBookingPageSize = 5
	DefaultTrialPageSize   = 20
	DefaultTrialRow        = 5
	DefaultMaxPages        = 50
	DefaultContenders      = 2
	DefaultJitterMax       = 100 * time.Millisecond
)

var (
	ErrNoScenarios   = errors.New("no scenarios configured")
	ErrNoBaseURL     = errors.New("target.baseURL is required (or set " + EnvAPIURL + ")")
	ErrNoCredentials = errors.New("credentials.users or credentials.file is required")
)

// Kind selects which flow a scenario runs.
type Kind string

const (
	KindBooking       Kind = "booking"
	KindConflict      Kind = "conflict"
	KindAuthorization Kind = "authorization"
)

// Jitter kinds for the conflict orchestrator delay.
const (
	JitterUniform = "uniform"
	JitterFixed   = "fixed"
	JitterNone    = "none"
)

// Orders of the intruder's calls in an authorization scenario.
const (
	OrderIntruderFirst = "intruder_first"
	OrderInterleaved   = "interleaved"
)

// Config is the root configuration structure.
type Config struct {
	Target      Target                `yaml:"target"`
	Credentials Credentials           `yaml:"credentials"`
	EventID     int64                 `yaml:"eventID"`
	Reset       Reset                 `yaml:"reset"`
	Scenarios   []Scenario            `yaml:"scenarios"`
	Thresholds  *collector.Thresholds `yaml:"thresholds,omitempty"`
	Execution   ExecutionConfig       `yaml:"execution,omitempty"`

	// dir is the directory of the loaded file, for relative credential paths.
	dir string
}

// Target describes the booking API under test.
type Target struct {
	BaseURL   string        `yaml:"baseURL"`
	BasicAuth string        `yaml:"basicAuth"` // static base64 token for calls made without an identity
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"userAgent"`
	RPS       int           `yaml:"rps"` // 0 = unlimited
}

// Credentials lists identities inline or points at a file.
type Credentials struct {
	File  string                 `yaml:"file"`
	Users []credentials.Identity `yaml:"users"`
}

// Reset controls the one-shot system reset before scenarios start.
type Reset struct {
	Skip    bool          `yaml:"skip"`
	Timeout time.Duration `yaml:"timeout"`
	Settle  time.Duration `yaml:"settle"`
}

// ExecutionConfig controls iteration-level execution behavior.
type ExecutionConfig struct {
	WarmupIterations int `yaml:"warmup_iterations"`
}

// Scenario is one concurrently running group of actors.
type Scenario struct {
	Name        string        `yaml:"name"`
	Kind        Kind          `yaml:"kind"`
	Actors      int           `yaml:"actors"`
	Iterations  int           `yaml:"iterations"` // per actor, 0 = until maxDuration
	StartTime   time.Duration `yaml:"startTime"`
	MaxDuration time.Duration `yaml:"maxDuration"`
	Stages      []Stage       `yaml:"stages,omitempty"`

	PageSize     int           `yaml:"pageSize"`
	Row          int           `yaml:"row"`
	MaxPages     int           `yaml:"maxPages"`
	Contenders   int           `yaml:"contenders"`
	ConfirmDelay time.Duration `yaml:"confirmDelay"`
	Jitter       Jitter        `yaml:"jitter"`
	ThinkTime    ThinkTime     `yaml:"thinkTime"`
	Order        string        `yaml:"order"`
}

// Jitter configures the pre-select delay distribution of conflict actors.
type Jitter struct {
	Kind string        `yaml:"kind"`
	Min  time.Duration `yaml:"min"`
	Max  time.Duration `yaml:"max"`
}

// ThinkTime is a uniform pause after each booking iteration.
type ThinkTime struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// Stage ramps the number of actors linearly from the previous stage's
// target to Target over Duration.
type Stage struct {
	Name     string        `yaml:"name"`
	Duration time.Duration `yaml:"duration"`
	Target   int           `yaml:"target"`
	RPS      int           `yaml:"rps"`
}

// TotalDuration returns the sum of all stage durations.
func TotalDuration(stages []Stage) time.Duration {
	var total time.Duration
	for _, s := range stages {
		total += s.Duration
	}
	return total
}

// Ramped reports whether the scenario uses staged ramping instead of fixed actors.
func (s *Scenario) Ramped() bool {
	return len(s.Stages) > 0
}

// Attempts returns the planned number of scenario runs, or 0 when unbounded.
func (s *Scenario) Attempts() int {
	if s.Ramped() || s.Iterations == 0 {
		return 0
	}
	return s.Actors * s.Iterations
}

// LoadConfig reads, defaults and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes YAML, applies environment overrides and defaults, and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if v, ok := os.LookupEnv(EnvAPIURL); ok && v != "" {
		cfg.Target.BaseURL = v
	}
	if v, ok := os.LookupEnv(EnvBasicAuth); ok && v != "" {
		cfg.Target.BasicAuth = v
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Target.Timeout == 0 {
		c.Target.Timeout = DefaultTimeout
	}
	if c.Target.UserAgent == "" {
		c.Target.UserAgent = DefaultUserAgent
	}
	if c.EventID == 0 {
		c.EventID = DefaultEventID
	}
	if c.Reset.Timeout == 0 {
		c.Reset.Timeout = DefaultTimeout
	}
	if c.Reset.Settle == 0 {
		c.Reset.Settle = DefaultResetSettle
	}

	for i := range c.Scenarios {
		s := &c.Scenarios[i]
		if s.Name == "" {
			s.Name = fmt.Sprintf("%s_%d", s.Kind, i+1)
		}
		if s.Actors == 0 && !s.Ramped() {
			s.Actors = 1
		}
		if s.MaxDuration == 0 {
			s.MaxDuration = DefaultMaxDuration
		}
		if s.ConfirmDelay == 0 {
			s.ConfirmDelay = DefaultConfirmDelay
		}
		if s.MaxPages == 0 {
			s.MaxPages = DefaultMaxPages
		}
		switch s.Kind {
		case KindBooking:
			if s.PageSize == 0 {
				s.PageSize = DefaultBookingPageSize
			}
		case KindConflict:
			if s.PageSize == 0 {
				s.PageSize = DefaultTrialPageSize
			}
			if s.Row == 0 {
				s.Row = DefaultTrialRow
			}
			if s.Contenders == 0 {
				s.Contenders = DefaultContenders
			}
			if s.Jitter.Kind == "" {
				s.Jitter.Kind = JitterUniform
				if s.Jitter.Max == 0 {
					s.Jitter.Max = DefaultJitterMax
				}
			}
		case KindAuthorization:
			if s.PageSize == 0 {
				s.PageSize = DefaultTrialPageSize
			}
			if s.Order == "" {
				s.Order = OrderIntruderFirst
			}
		}
	}
}

// Validate returns every configuration problem joined into one error.
func (c *Config) Validate() error {
	var errs []error

	if c.Target.BaseURL == "" {
		errs = append(errs, ErrNoBaseURL)
	} else if u, err := url.Parse(c.Target.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("target.baseURL %q is not an absolute URL", c.Target.BaseURL))
	}
	if c.Target.RPS < 0 {
		errs = append(errs, fmt.Errorf("target.rps must be >= 0"))
	}
	if c.Credentials.File == "" && len(c.Credentials.Users) == 0 {
		errs = append(errs, ErrNoCredentials)
	}
	if len(c.Scenarios) == 0 {
		errs = append(errs, ErrNoScenarios)
	}

	names := make(map[string]bool, len(c.Scenarios))
	for i := range c.Scenarios {
		s := &c.Scenarios[i]
		if names[s.Name] {
			errs = append(errs, fmt.Errorf("scenario %q: duplicate name", s.Name))
		}
		names[s.Name] = true
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("scenario %q: %w", s.Name, err))
		}
	}

	return errors.Join(errs...)
}

func (s *Scenario) validate() error {
	var errs []error

	switch s.Kind {
	case KindBooking, KindConflict, KindAuthorization:
	default:
		errs = append(errs, fmt.Errorf("unknown kind %q (use booking, conflict or authorization)", s.Kind))
	}
	if !s.Ramped() && s.Actors < 1 {
		errs = append(errs, fmt.Errorf("actors must be >= 1"))
	}
	if s.Iterations < 0 {
		errs = append(errs, fmt.Errorf("iterations must be >= 0"))
	}
	if s.StartTime < 0 {
		errs = append(errs, fmt.Errorf("startTime must be >= 0"))
	}
	if s.PageSize < 0 {
		errs = append(errs, fmt.Errorf("pageSize must be >= 0"))
	}
	for i, st := range s.Stages {
		if st.Duration <= 0 {
			errs = append(errs, fmt.Errorf("stage %d: duration must be > 0", i+1))
		}
		if st.Target < 0 || st.RPS < 0 {
			errs = append(errs, fmt.Errorf("stage %d: target and rps must be >= 0", i+1))
		}
	}
	if s.Kind == KindConflict && s.Contenders < 2 {
		errs = append(errs, fmt.Errorf("contenders must be >= 2"))
	}
	switch s.Jitter.Kind {
	case "", JitterUniform, JitterFixed, JitterNone:
	default:
		errs = append(errs, fmt.Errorf("unknown jitter kind %q", s.Jitter.Kind))
	}
	if s.Jitter.Min < 0 || (s.Jitter.Kind == JitterUniform && s.Jitter.Max < s.Jitter.Min) {
		errs = append(errs, fmt.Errorf("jitter must satisfy 0 <= min <= max"))
	}
	switch s.Order {
	case "", OrderIntruderFirst, OrderInterleaved:
	default:
		errs = append(errs, fmt.Errorf("unknown order %q (use %s or %s)", s.Order, OrderIntruderFirst, OrderInterleaved))
	}
	if s.ThinkTime.Min < 0 || s.ThinkTime.Max < s.ThinkTime.Min {
		errs = append(errs, fmt.Errorf("thinkTime must satisfy 0 <= min <= max"))
	}

	return errors.Join(errs...)
}

// LoadIdentities returns the inline users followed by those read from the
// credentials file, if any.
func (c *Config) LoadIdentities() ([]credentials.Identity, error) {
	ids := append([]credentials.Identity(nil), c.Credentials.Users...)
	if c.Credentials.File != "" {
		fromFile, err := credentials.LoadFile(c.Credentials.File, c.dir)
		if err != nil {
			return nil, err
		}
		ids = append(ids, fromFile...)
	}
	return ids, nil
}

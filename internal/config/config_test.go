package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalConfig = `
target:
  baseURL: "http://localhost:8080"
credentials:
  users:
    - email: "a@example.com"
      password: "secret"
scenarios:
  - kind: booking
`

func TestLoadConfig_Minimal(t *testing.T) {
	cfg := loadConfigFromString(t, minimalConfig)

	if cfg.Target.BaseURL != "http://localhost:8080" {
		t.Errorf("expected baseURL, got %q", cfg.Target.BaseURL)
	}
	if len(cfg.Credentials.Users) != 1 || cfg.Credentials.Users[0].Secret != "secret" {
		t.Errorf("expected one user with password, got %+v", cfg.Credentials.Users)
	}
	if len(cfg.Scenarios) != 1 {
		t.Fatalf("expected 1 scenario, got %d", len(cfg.Scenarios))
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	content := minimalConfig + `
  - kind: conflict
  - kind: authorization
`
	cfg := loadConfigFromString(t, content)

	if cfg.Target.Timeout != DefaultTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultTimeout, cfg.Target.Timeout)
	}
	if cfg.EventID != 1 {
		t.Errorf("expected eventID 1, got %d", cfg.EventID)
	}
	if cfg.Reset.Settle != 2*time.Second {
		t.Errorf("expected settle 2s, got %v", cfg.Reset.Settle)
	}

	booking := cfg.Scenarios[0]
	if booking.Name != "booking_1" {
		t.Errorf("expected generated name booking_1, got %q", booking.Name)
	}
	if booking.PageSize != 5 || booking.Actors != 1 || booking.ConfirmDelay != 500*time.Millisecond {
		t.Errorf("unexpected booking defaults: %+v", booking)
	}

	trial := cfg.Scenarios[1]
	if trial.PageSize != 20 || trial.Row != 5 || trial.Contenders != 2 {
		t.Errorf("unexpected conflict defaults: %+v", trial)
	}
	if trial.Jitter.Kind != JitterUniform || trial.Jitter.Max != 100*time.Millisecond {
		t.Errorf("expected uniform 0-100ms jitter, got %+v", trial.Jitter)
	}

	auth := cfg.Scenarios[2]
	if auth.PageSize != 20 || auth.MaxPages != DefaultMaxPages {
		t.Errorf("unexpected authorization defaults: %+v", auth)
	}
}

func TestLoadConfig_FullScenario(t *testing.T) {
	content := `
target:
  baseURL: "https://tickets.example.com"
  timeout: 5s
  rps: 50
credentials:
  users:
    - email: "a@example.com"
      password: "x"
eventID: 7
reset:
  skip: true
scenarios:
  - name: race
    kind: conflict
    actors: 3
    iterations: 10
    startTime: 2m
    contenders: 4
    confirmDelay: 250ms
    jitter:
      kind: fixed
      min: 20ms
  - name: ramp
    kind: booking
    thinkTime:
      min: 500ms
      max: 2500ms
    stages:
      - duration: 30s
        target: 10
      - duration: 1m
        target: 10
        rps: 20
thresholds:
  http_req_duration:
    p95: 500ms
  booking_success_rate:
    min: "0.5"
`
	cfg := loadConfigFromString(t, content)

	if cfg.Target.Timeout != 5*time.Second || cfg.Target.RPS != 50 {
		t.Errorf("unexpected target: %+v", cfg.Target)
	}
	if cfg.EventID != 7 || !cfg.Reset.Skip {
		t.Errorf("expected eventID 7 and reset skipped, got %d %v", cfg.EventID, cfg.Reset.Skip)
	}

	race := cfg.Scenarios[0]
	if race.StartTime != 2*time.Minute || race.Contenders != 4 || race.ConfirmDelay != 250*time.Millisecond {
		t.Errorf("unexpected race scenario: %+v", race)
	}
	if race.Jitter.Kind != JitterFixed || race.Jitter.Min != 20*time.Millisecond {
		t.Errorf("expected fixed jitter, got %+v", race.Jitter)
	}
	if race.Attempts() != 30 {
		t.Errorf("expected 30 attempts, got %d", race.Attempts())
	}

	ramp := cfg.Scenarios[1]
	if !ramp.Ramped() || ramp.Actors != 0 {
		t.Errorf("expected ramped scenario without fixed actors, got %+v", ramp)
	}
	if TotalDuration(ramp.Stages) != 90*time.Second {
		t.Errorf("expected 90s of stages, got %v", TotalDuration(ramp.Stages))
	}
	if ramp.Stages[1].RPS != 20 {
		t.Errorf("expected stage rps 20, got %d", ramp.Stages[1].RPS)
	}
	if ramp.Attempts() != 0 {
		t.Errorf("expected unbounded attempts for ramp, got %d", ramp.Attempts())
	}

	if cfg.Thresholds == nil || cfg.Thresholds.HTTPReqDuration.P95 != 500*time.Millisecond {
		t.Errorf("expected p95 threshold, got %+v", cfg.Thresholds)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv(EnvAPIURL, "http://override:9000")
	t.Setenv(EnvBasicAuth, "dG9rZW4=")

	cfg := loadConfigFromString(t, minimalConfig)

	if cfg.Target.BaseURL != "http://override:9000" {
		t.Errorf("expected API_URL override, got %q", cfg.Target.BaseURL)
	}
	if cfg.Target.BasicAuth != "dG9rZW4=" {
		t.Errorf("expected BASIC_AUTH override, got %q", cfg.Target.BasicAuth)
	}
}

func TestLoadConfig_EnvSuppliesMissingURL(t *testing.T) {
	t.Setenv(EnvAPIURL, "http://from-env:8080")
	content := strings.Replace(minimalConfig, `  baseURL: "http://localhost:8080"`, "", 1)

	cfg := loadConfigFromString(t, content)
	if cfg.Target.BaseURL != "http://from-env:8080" {
		t.Errorf("expected baseURL from env, got %q", cfg.Target.BaseURL)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	content := `
target:
  baseURL: "http://x
scenarios: [[[invalid
`
	_, err := LoadConfig(createTempFile(t, content))
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	_, err := LoadConfig(createTempFile(t, ""))
	if err == nil {
		t.Fatal("expected validation error for empty file")
	}
	for _, want := range []error{ErrNoBaseURL, ErrNoCredentials, ErrNoScenarios} {
		if !errors.Is(err, want) {
			t.Errorf("expected %v in %v", want, err)
		}
	}
}

func TestLoadConfig_AuthorizationOrder(t *testing.T) {
	content := `
target:
  baseURL: http://localhost:8080
scenarios:
  - kind: authorization
  - kind: authorization
    order: interleaved
`
	cfg := loadConfigFromString(t, content)

	if got := cfg.Scenarios[0].Order; got != OrderIntruderFirst {
		t.Errorf("expected default order %q, got %q", OrderIntruderFirst, got)
	}
	if got := cfg.Scenarios[1].Order; got != OrderInterleaved {
		t.Errorf("expected order %q, got %q", OrderInterleaved, got)
	}
}

func TestValidate_ScenarioErrors(t *testing.T) {
	tests := []struct {
		name     string
		scenario Scenario
		want     string
	}{
		{"unknown kind", Scenario{Name: "s", Kind: "browse", Actors: 1}, "unknown kind"},
		{"negative iterations", Scenario{Name: "s", Kind: KindBooking, Actors: 1, Iterations: -1}, "iterations"},
		{"too few contenders", Scenario{Name: "s", Kind: KindConflict, Actors: 1, Contenders: 1}, "contenders"},
		{"bad jitter kind", Scenario{Name: "s", Kind: KindConflict, Actors: 1, Contenders: 2, Jitter: Jitter{Kind: "normal"}}, "jitter kind"},
		{"inverted jitter", Scenario{Name: "s", Kind: KindConflict, Actors: 1, Contenders: 2, Jitter: Jitter{Kind: JitterUniform, Min: 2, Max: 1}}, "jitter must"},
		{"inverted think time", Scenario{Name: "s", Kind: KindBooking, Actors: 1, ThinkTime: ThinkTime{Min: 2, Max: 1}}, "thinkTime"},
		{"unknown order", Scenario{Name: "s", Kind: KindAuthorization, Actors: 1, Order: "sideways"}, "unknown order"},
		{"zero stage duration", Scenario{Name: "s", Kind: KindBooking, Stages: []Stage{{Target: 1}}}, "stage 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Scenarios = []Scenario{tt.scenario}

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_DuplicateNames(t *testing.T) {
	cfg := validConfig()
	cfg.Scenarios = append(cfg.Scenarios, cfg.Scenarios[0])

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate name") {
		t.Errorf("expected duplicate name error, got %v", err)
	}
}

func TestValidate_RelativeURL(t *testing.T) {
	cfg := validConfig()
	cfg.Target.BaseURL = "/api"

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for relative baseURL")
	}
}

func TestLoadIdentities_MergesFile(t *testing.T) {
	dir := t.TempDir()
	csv := "email,password\nb@example.com,pw\n"
	if err := os.WriteFile(filepath.Join(dir, "users.csv"), []byte(csv), 0644); err != nil {
		t.Fatalf("failed to write users file: %v", err)
	}
	content := minimalConfig + `
  - kind: conflict
`
	content = strings.Replace(content, "credentials:\n", "credentials:\n  file: users.csv\n", 1)
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids, err := cfg.LoadIdentities()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(ids))
	}
	if ids[0].Email != "a@example.com" || ids[1].Email != "b@example.com" {
		t.Errorf("unexpected identity order: %v", ids)
	}
}

func TestTotalDuration_Empty(t *testing.T) {
	if TotalDuration(nil) != 0 {
		t.Errorf("expected 0 duration, got %v", TotalDuration(nil))
	}
}

// Helper functions

func validConfig() *Config {
	cfg := &Config{
		Target:      Target{BaseURL: "http://localhost:8080"},
		Credentials: Credentials{File: "users.csv"},
		Scenarios:   []Scenario{{Name: "s", Kind: KindBooking, Actors: 1}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func loadConfigFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := LoadConfig(createTempFile(t, content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func createTempFile(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return tmpFile
}

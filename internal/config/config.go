package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/torosent/xrayload/internal/cluster"
)

// Defaults applied before the config file, environment and flags.
const (
	DefaultJFrogURL        = "https://trialvq0712.jfrog.io"
	DefaultUsername        = "perftest"
	DefaultRepoName        = "docker-local"
	DefaultImageName       = "alpine:3.9"
	DefaultCustomTag       = "test"
	DefaultCoordinatorBind = ":5557"
)

type Config struct {
	JFrogURL    string `mapstructure:"jfrog_url" yaml:"jfrog_url"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"password,omitempty"`
	AccessToken string `mapstructure:"access_token" yaml:"access_token,omitempty"`
	RepoName    string `mapstructure:"repo_name" yaml:"repo_name"`
	ImageName   string `mapstructure:"image_name" yaml:"image_name"`
	CustomTag   string `mapstructure:"custom_tag" yaml:"custom_tag"`
	DockerBin   string `mapstructure:"docker_bin" yaml:"docker_bin"`

	Users     int           `mapstructure:"users" yaml:"users"`
	SpawnRate float64       `mapstructure:"spawn_rate" yaml:"spawn_rate"`
	Duration  time.Duration `mapstructure:"duration" yaml:"-"`
	WaitMin   time.Duration `mapstructure:"wait_min" yaml:"-"`
	WaitMax   time.Duration `mapstructure:"wait_max" yaml:"-"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"-"`
	Rate      int           `mapstructure:"rate" yaml:"rate"`

	Role           string        `mapstructure:"role" yaml:"role"`
	Coordinator    string        `mapstructure:"coordinator" yaml:"coordinator,omitempty"`
	Bind           string        `mapstructure:"bind" yaml:"bind"`
	WorkerID       int           `mapstructure:"worker_id" yaml:"worker_id"`
	ExpectWorkers  int           `mapstructure:"expect_workers" yaml:"expect_workers"`
	CollectTimeout time.Duration `mapstructure:"collect_timeout" yaml:"-"`

	OutputDir    string `mapstructure:"output_dir" yaml:"output_dir"`
	FallbackDir  string `mapstructure:"fallback_dir" yaml:"fallback_dir,omitempty"`
	ReportConfig bool   `mapstructure:"report_config" yaml:"report_config"`
	JSONOutput   bool   `mapstructure:"json_output" yaml:"json_output"`
	PrintConfig  bool   `mapstructure:"print_config" yaml:"-"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat    string `mapstructure:"log_format" yaml:"log_format"`

	Tracing    TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	ConfigFile string        `mapstructure:"-" yaml:"-"`
}

// TracingConfig controls OpenTelemetry export of per-operation spans.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Protocol    string  `mapstructure:"protocol" yaml:"protocol,omitempty"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name,omitempty"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	Propagate   bool    `mapstructure:"propagate" yaml:"propagate"`
}

// ShouldPropagate reports whether W3C trace headers go out with API calls.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Propagate
}

// ClusterRole parses Role. Validate reports an unknown role.
func (c Config) ClusterRole() cluster.Role {
	role, _ := cluster.ParseRole(c.Role)
	return role
}

// RegistryHost is the JFrog host name used for docker login and image tags.
func (c Config) RegistryHost() string {
	u, err := url.Parse(c.JFrogURL)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(strings.TrimPrefix(c.JFrogURL, "https://"), "http://")
	}
	return u.Host
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	role, err := cluster.ParseRole(c.Role)
	if err != nil {
		issues = append(issues, err.Error())
	}

	runsUsers := c.Users > 0
	if c.Users < 0 {
		issues = append(issues, "users must be >= 0")
	}
	if c.Users == 0 && role != cluster.RoleCoordinator {
		issues = append(issues, "users must be >= 1 unless running as coordinator")
	}
	if c.Users > 500 {
		fmt.Fprintf(os.Stderr, "WARNING: High user count configured (%d). Ensure you have authorization to test the target system.\n", c.Users)
	}

	if runsUsers {
		issues = append(issues, validateTarget(c)...)
	}
	if c.SpawnRate <= 0 {
		issues = append(issues, "spawn-rate must be > 0")
	}
	if c.WaitMin < 0 {
		issues = append(issues, "wait-min must be >= 0")
	}
	if c.WaitMax < c.WaitMin {
		issues = append(issues, "wait-max must be >= wait-min")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}

	switch role {
	case cluster.RoleWorker:
		if strings.TrimSpace(c.Coordinator) == "" {
			issues = append(issues, "coordinator address is required for worker role")
		} else if _, err := cluster.CoordinatorURL(c.Coordinator); err != nil {
			issues = append(issues, fmt.Sprintf("coordinator: %v", err))
		}
	case cluster.RoleCoordinator:
		if strings.TrimSpace(c.Bind) == "" {
			issues = append(issues, "bind address is required for coordinator role")
		}
	}
	if c.ExpectWorkers < 0 {
		issues = append(issues, "expect-workers must be >= 0")
	}
	if c.CollectTimeout < 0 {
		issues = append(issues, "collect-timeout must be >= 0")
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log-format must be 'console' or 'json', got %q", c.LogFormat))
	}

	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTarget(c Config) []string {
	var issues []string
	u, err := url.Parse(strings.TrimSpace(c.JFrogURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		issues = append(issues, fmt.Sprintf("jfrog-url must be an http(s) URL, got %q", c.JFrogURL))
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		if strings.TrimSpace(c.Username) == "" {
			issues = append(issues, "username is required when no access token is set")
		}
		if c.Password == "" {
			issues = append(issues, "password or access token is required (set JFROG_PASSWORD or JFROG_ACCESS_TOKEN)")
		}
	}
	if strings.TrimSpace(c.RepoName) == "" {
		issues = append(issues, "repo-name is required")
	}
	if strings.TrimSpace(c.ImageName) == "" {
		issues = append(issues, "image is required")
	}
	return issues
}

func validateTracing(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}

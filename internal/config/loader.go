package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files, the environment and
// command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// envBindings maps setting keys to the environment variables that feed them.
var envBindings = []struct {
	key string
	env string
}{
	{"jfrog_url", "JFROG_URL"},
	{"username", "JFROG_USERNAME"},
	{"password", "JFROG_PASSWORD"},
	{"access_token", "JFROG_ACCESS_TOKEN"},
	{"repo_name", "JFROG_REPO_NAME"},
	{"image_name", "JFROG_IMAGE_NAME"},
	{"role", "XRAYLOAD_ROLE"},
	{"coordinator", "XRAYLOAD_COORDINATOR"},
	{"worker_id", "XRAYLOAD_WORKER_ID"},
}

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Defaults returns the configuration used before any source is applied.
func Defaults() *Config {
	return &Config{
		JFrogURL:       DefaultJFrogURL,
		Username:       DefaultUsername,
		RepoName:       DefaultRepoName,
		ImageName:      DefaultImageName,
		CustomTag:      DefaultCustomTag,
		DockerBin:      "docker",
		Users:          1,
		SpawnRate:      1,
		WaitMin:        1 * time.Second,
		WaitMax:        5 * time.Second,
		Timeout:        30 * time.Second,
		Role:           "standalone",
		Bind:           DefaultCoordinatorBind,
		CollectTimeout: 30 * time.Second,
		OutputDir:      ".",
		LogLevel:       "info",
		LogFormat:      "console",
		Tracing:        TracingConfig{Protocol: "grpc", SampleRate: 1},
	}
}

// Load parses command-line arguments and configuration files to produce a
// Config. Precedence is flag, then environment, then config file, then default.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(rest, " "))
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	for _, b := range envBindings {
		if err := cfgViper.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", b.env, err)
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.JFrogURL = strings.TrimRight(strings.TrimSpace(cfg.JFrogURL), "/")
	cfg.Role = strings.ToLower(strings.TrimSpace(cfg.Role))
	return cfg, nil
}

// applyConfigSettings applies settings from a config file or the environment.
func applyConfigSettings(cfg *Config, raw map[string]interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	s := settings(raw)

	for _, f := range []struct {
		dst  *string
		keys []string
	}{
		{&cfg.JFrogURL, []string{"jfrog_url", "jfrog-url"}},
		{&cfg.Username, []string{"username"}},
		{&cfg.Password, []string{"password"}},
		{&cfg.AccessToken, []string{"access_token", "access-token"}},
		{&cfg.RepoName, []string{"repo_name", "repo-name"}},
		{&cfg.ImageName, []string{"image_name", "image-name", "image"}},
		{&cfg.CustomTag, []string{"custom_tag", "custom-tag", "tag"}},
		{&cfg.DockerBin, []string{"docker_bin", "docker-bin"}},
		{&cfg.Role, []string{"role"}},
		{&cfg.Coordinator, []string{"coordinator"}},
		{&cfg.Bind, []string{"bind"}},
		{&cfg.OutputDir, []string{"output_dir", "output-dir"}},
		{&cfg.FallbackDir, []string{"fallback_dir", "fallback-dir"}},
		{&cfg.LogLevel, []string{"log_level", "log-level"}},
		{&cfg.LogFormat, []string{"log_format", "log-format"}},
	} {
		if err := set(s, f.dst, textValue, f.keys...); err != nil {
			return err
		}
	}

	for _, f := range []struct {
		dst  *int
		keys []string
	}{
		{&cfg.Users, []string{"users", "num_users"}},
		{&cfg.Rate, []string{"rate"}},
		{&cfg.WorkerID, []string{"worker_id", "worker-id"}},
		{&cfg.ExpectWorkers, []string{"expect_workers", "expect-workers"}},
	} {
		if err := set(s, f.dst, intValue, f.keys...); err != nil {
			return err
		}
	}

	for _, f := range []struct {
		dst  *time.Duration
		keys []string
	}{
		{&cfg.Duration, []string{"duration", "run_time"}},
		{&cfg.WaitMin, []string{"wait_min", "wait-min"}},
		{&cfg.WaitMax, []string{"wait_max", "wait-max"}},
		{&cfg.Timeout, []string{"timeout"}},
		{&cfg.CollectTimeout, []string{"collect_timeout", "collect-timeout"}},
	} {
		if err := set(s, f.dst, durationValue, f.keys...); err != nil {
			return err
		}
	}

	if err := set(s, &cfg.ReportConfig, boolValue, "report_config", "report-config"); err != nil {
		return err
	}
	if err := set(s, &cfg.JSONOutput, boolValue, "json_output", "json-output"); err != nil {
		return err
	}
	if err := set(s, &cfg.SpawnRate, floatValue, "spawn_rate", "spawn-rate"); err != nil {
		return err
	}

	tracing, ok, err := s.nested("tracing")
	if err != nil {
		return err
	}
	if ok {
		if err := applyTracingSettings(&cfg.Tracing, tracing); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}
	return nil
}

// applyTracingSettings decodes the tracing block onto a copy of dst and
// commits it only when every key parsed.
func applyTracingSettings(dst *TracingConfig, s settings) error {
	out := *dst
	for _, err := range []error{
		set(s, &out.Endpoint, textValue, "endpoint"),
		set(s, &out.Protocol, textValue, "protocol"),
		set(s, &out.ServiceName, textValue, "service_name", "service-name"),
		set(s, &out.Insecure, boolValue, "insecure"),
		set(s, &out.Propagate, boolValue, "propagate"),
		set(s, &out.SampleRate, floatValue, "sample_rate", "sample-rate"),
	} {
		if err != nil {
			return err
		}
	}
	*dst = out
	return nil
}

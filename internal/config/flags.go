package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "xrayload",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.String("jfrog-url", DefaultJFrogURL, "JFrog platform base URL (env JFROG_URL)")
	flags.String("username", DefaultUsername, "JFrog user name (env JFROG_USERNAME)")
	flags.String("password", "", "JFrog password (env JFROG_PASSWORD)")
	flags.String("access-token", "", "JFrog access token, used instead of basic auth (env JFROG_ACCESS_TOKEN)")
	flags.String("repo-name", DefaultRepoName, "Prefix for created Docker repositories (env JFROG_REPO_NAME)")
	flags.String("image", DefaultImageName, "Source image pushed into created repositories (env JFROG_IMAGE_NAME)")
	flags.String("tag", DefaultCustomTag, "Tag applied to pushed images")
	flags.String("docker-bin", "docker", "Docker CLI used for login, pull, tag and push")

	// Load control flags
	flags.IntP("users", "u", 1, "Number of simulated users")
	flags.Float64P("spawn-rate", "s", 1, "Users started per second")
	flags.DurationP("duration", "d", 0, "How long to run the test (e.g. 30s, 1m); 0 runs until interrupted")
	flags.Duration("wait-min", time.Second, "Minimum pause between a user's tasks")
	flags.Duration("wait-max", 5*time.Second, "Maximum pause between a user's tasks")
	flags.Duration("timeout", 30*time.Second, "Per-request timeout")
	flags.IntP("rate", "r", 0, "Operations per second limit across all users (0 means unlimited)")

	// Distributed flags
	flags.String("role", "standalone", "Process role: standalone, coordinator or worker (env XRAYLOAD_ROLE)")
	flags.String("coordinator", "", "Coordinator address for workers, host:port or ws:// URL (env XRAYLOAD_COORDINATOR)")
	flags.String("bind", DefaultCoordinatorBind, "Listen address for the coordinator")
	flags.Int("worker-id", 0, "Worker index to request from the coordinator; 0 lets it assign one (env XRAYLOAD_WORKER_ID)")
	flags.Int("expect-workers", 0, "Coordinator waits for this many worker reports before writing")
	flags.Duration("collect-timeout", 30*time.Second, "How long the coordinator waits for worker reports after stopping")

	// Output flags
	flags.String("output-dir", ".", "Directory for the performance report")
	flags.String("fallback-dir", "", "Directory used when the report cannot be written to output-dir (default system temp dir)")
	flags.Bool("report-config", false, "Write the test configuration block at the top of the report")
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("print-config", false, "Print the effective configuration (secrets masked) and exit")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "console", "Log format: console or json")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint; empty disables tracing")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS to the OTLP collector")
	flags.String("tracing-service-name", "", "Service name reported with spans (default xrayload)")
	flags.Float64("tracing-sample-rate", 1, "Fraction of operations traced, 0.0 to 1.0")
	flags.Bool("tracing-propagate", false, "Send W3C trace context headers with API calls")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file and environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	stringFlags := map[string]*string{
		"jfrog-url":            &cfg.JFrogURL,
		"username":             &cfg.Username,
		"password":             &cfg.Password,
		"access-token":         &cfg.AccessToken,
		"repo-name":            &cfg.RepoName,
		"image":                &cfg.ImageName,
		"tag":                  &cfg.CustomTag,
		"docker-bin":           &cfg.DockerBin,
		"role":                 &cfg.Role,
		"coordinator":          &cfg.Coordinator,
		"bind":                 &cfg.Bind,
		"output-dir":           &cfg.OutputDir,
		"fallback-dir":         &cfg.FallbackDir,
		"log-level":            &cfg.LogLevel,
		"log-format":           &cfg.LogFormat,
		"tracing-endpoint":     &cfg.Tracing.Endpoint,
		"tracing-protocol":     &cfg.Tracing.Protocol,
		"tracing-service-name": &cfg.Tracing.ServiceName,
	}
	for name, dst := range stringFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	intFlags := map[string]*int{
		"users":          &cfg.Users,
		"rate":           &cfg.Rate,
		"worker-id":      &cfg.WorkerID,
		"expect-workers": &cfg.ExpectWorkers,
	}
	for name, dst := range intFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetInt(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	durationFlags := map[string]*time.Duration{
		"duration":        &cfg.Duration,
		"wait-min":        &cfg.WaitMin,
		"wait-max":        &cfg.WaitMax,
		"timeout":         &cfg.Timeout,
		"collect-timeout": &cfg.CollectTimeout,
	}
	for name, dst := range durationFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	boolFlags := map[string]*bool{
		"report-config":     &cfg.ReportConfig,
		"json-output":       &cfg.JSONOutput,
		"print-config":      &cfg.PrintConfig,
		"tracing-insecure":  &cfg.Tracing.Insecure,
		"tracing-propagate": &cfg.Tracing.Propagate,
	}
	for name, dst := range boolFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	floatFlags := map[string]*float64{
		"spawn-rate":          &cfg.SpawnRate,
		"tracing-sample-rate": &cfg.Tracing.SampleRate,
	}
	for name, dst := range floatFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetFloat64(name)
		if err != nil {
			return err
		}
		*dst = val
	}
	return nil
}

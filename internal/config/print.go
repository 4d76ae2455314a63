package config

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/xrayload/internal/report"
)

const redactedSecret = "********"

// Redacted returns a copy of c with secrets masked.
func (c Config) Redacted() Config {
	if c.Password != "" {
		c.Password = redactedSecret
	}
	if c.AccessToken != "" {
		c.AccessToken = redactedSecret
	}
	return c
}

// Print writes the effective configuration as YAML with secrets masked.
func (c Config) Print(w io.Writer) error {
	r := c.Redacted()
	doc := struct {
		Config   `yaml:",inline"`
		Duration string `yaml:"duration"`
		WaitMin  string `yaml:"wait_min"`
		WaitMax  string `yaml:"wait_max"`
		Timeout  string `yaml:"timeout"`
		Collect  string `yaml:"collect_timeout"`
	}{
		Config:   r,
		Duration: r.Duration.String(),
		WaitMin:  r.WaitMin.String(),
		WaitMax:  r.WaitMax.String(),
		Timeout:  r.Timeout.String(),
		Collect:  r.CollectTimeout.String(),
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// ReportEntries returns the configuration block written ahead of the report
// table for a run that started at start and ran for elapsed.
func (c Config) ReportEntries(start time.Time, elapsed time.Duration) []report.Entry {
	return []report.Entry{
		{Key: "jfrog_url", Value: c.JFrogURL},
		{Key: "username", Value: c.Username},
		{Key: "num_users", Value: strconv.Itoa(c.Users)},
		{Key: "spawn_rate", Value: strconv.FormatFloat(c.SpawnRate, 'f', -1, 64)},
		{Key: "test_start_time", Value: start.Format("2006-01-02T15:04:05")},
		{Key: "test_duration", Value: elapsed.Round(time.Second).String()},
		{Key: "repo_name_pattern", Value: c.RepoName + "-<timestamp>-<user>"},
		{Key: "image_name", Value: c.ImageName},
		{Key: "custom_tag", Value: c.CustomTag},
		{Key: "role", Value: c.ClusterRole().String()},
	}
}

// Package registry drives the docker CLI against the JFrog Docker registry:
// login, then pull, tag and push of the test image into a repository.
package registry

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CommandRunner executes one CLI invocation and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	return cmd.CombinedOutput()
}

// Options configure a Docker client.
type Options struct {
	Binary string        // defaults to "docker"
	Host   string        // registry host, without scheme
	Runner CommandRunner // defaults to ExecRunner
	Logger *zap.Logger
}

type Docker struct {
	bin    string
	host   string
	runner CommandRunner
	log    *zap.Logger
}

func New(opts Options) *Docker {
	bin := strings.TrimSpace(opts.Binary)
	if bin == "" {
		bin = "docker"
	}
	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Docker{
		bin:    bin,
		host:   strings.TrimSuffix(opts.Host, "/"),
		runner: runner,
		log:    log,
	}
}

// Host is the registry host images are pushed to.
func (d *Docker) Host() string {
	return d.host
}

// Login authenticates the docker daemon against the registry. The password is
// passed on stdin.
func (d *Docker) Login(ctx context.Context, username, password string) error {
	if d.host == "" {
		return errors.New("docker login: registry host is empty")
	}
	out, err := d.runner.Run(ctx, strings.NewReader(password), d.bin,
		"login", d.host, "--username", username, "--password-stdin")
	if err != nil {
		return fmt.Errorf("docker login %s: %w", d.host, commandError(err, out))
	}
	return nil
}

// Reference returns the registry reference for image inside repoKey,
// retagged with tag.
func (d *Docker) Reference(repoKey, image, tag string) string {
	name := image
	if i := strings.LastIndex(name, ":"); i > strings.LastIndex(name, "/") {
		name = name[:i]
	}
	return fmt.Sprintf("%s/%s/%s:%s", d.host, repoKey, name, tag)
}

// PushResult describes one pull, tag and push cycle.
type PushResult struct {
	Reference string
	Elapsed   time.Duration
	Errors    []string
}

// OK reports whether the push completed without errors.
func (r PushResult) OK() bool {
	return len(r.Errors) == 0
}

// Push pulls image, tags it into repoKey and pushes it. Errors from the
// failing step are collected into the result rather than returned.
func (d *Docker) Push(ctx context.Context, repoKey, image, tag string) PushResult {
	result := PushResult{Reference: d.Reference(repoKey, image, tag)}
	start := time.Now()

	steps := [][]string{
		{"pull", image},
		{"tag", image, result.Reference},
		{"push", result.Reference},
	}
	for _, args := range steps {
		d.log.Debug("docker command", zap.Strings("args", args))
		out, err := d.runner.Run(ctx, nil, d.bin, args...)
		if err == nil {
			continue
		}
		result.Errors = collectErrors(err, out)
		d.log.Error("docker command failed",
			zap.String("step", args[0]),
			zap.String("reference", result.Reference),
			zap.Strings("errors", result.Errors),
		)
		break
	}
	result.Elapsed = time.Since(start)
	return result
}

// collectErrors keeps output lines that mention an error, falling back to the
// command error itself.
func collectErrors(err error, out []byte) []string {
	var errs []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && strings.Contains(strings.ToLower(line), "error") {
			errs = append(errs, line)
		}
	}
	if len(errs) == 0 {
		errs = append(errs, commandError(err, out).Error())
	}
	return errs
}

func commandError(err error, out []byte) error {
	msg := strings.TrimSpace(string(out))
	if msg == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, msg)
}

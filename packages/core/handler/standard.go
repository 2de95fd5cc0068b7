package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/descriptor"
	"github.com/abdul-hamid-achik/drivetest/packages/core/discovery"
	"github.com/abdul-hamid-achik/drivetest/packages/core/failure"
	"github.com/abdul-hamid-achik/drivetest/packages/core/result"
)

const (
	// DefaultInterpreter runs standard tests when none is configured
	DefaultInterpreter = "python3"
	// outputTailLines is how much subprocess output a failure keeps
	outputTailLines = 20
	// waitDelay bounds how long output is drained after the process is killed
	waitDelay = time.Second
)

// Environment variables a standard test reads to reach the driver.
const (
	EnvDriverURL = "DRIVETEST_DRIVER_URL"
	EnvSessionID = "DRIVETEST_SESSION_ID"
	EnvTestVars  = "DRIVETEST_TESTVARS"
)

// Standard runs test files as interpreter subprocesses.
type Standard struct{}

func NewStandard() *Standard {
	return &Standard{}
}

func (s *Standard) Kind() Kind {
	return KindStandard
}

func (s *Standard) Match(name string) bool {
	return discovery.StandardPattern.MatchString(name)
}

func (s *Standard) Run(ctx context.Context, env *Env, test descriptor.Test, c *result.Collector) error {
	log := env.logger().With("test", test.Name())

	if _, err := os.Stat(test.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.AddError(test, failure.NotFoundf(test.Path, "test file"))
			return nil
		}
		c.AddError(test, err)
		return nil
	}

	varsFile, err := writeTestVars(env.TestVars)
	if err != nil {
		return err
	}
	defer os.Remove(varsFile)

	runCtx := ctx
	if env.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, env.Timeout)
		defer cancel()
	}

	interpreter := env.Interpreter
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}

	cmd := exec.CommandContext(runCtx, interpreter, test.Path)
	cmd.Dir = filepath.Dir(test.Path)
	cmd.WaitDelay = waitDelay
	cmd.Env = append(os.Environ(), EnvTestVars+"="+varsFile)
	if env.Driver != nil {
		cmd.Env = append(cmd.Env,
			EnvDriverURL+"="+env.Driver.Address(),
			EnvSessionID+"="+env.Driver.SessionID(),
		)
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	log.Debug("starting subprocess", "interpreter", interpreter)
	err = cmd.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		c.AddSuccess(test)
	case runCtx.Err() != nil:
		c.AddError(test, fmt.Errorf("timed out after %v\n%s", env.Timeout, tail(output.String(), outputTailLines)))
	case errors.As(err, &exitErr):
		log.Debug("subprocess failed", "exit_code", exitErr.ExitCode())
		c.AddFailure(test, fmt.Sprintf("exit status %d\n%s", exitErr.ExitCode(), tail(output.String(), outputTailLines)))
	default:
		c.AddError(test, fmt.Errorf("failed to start %s: %w", interpreter, err))
	}
	return nil
}

func writeTestVars(vars map[string]any) (string, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("failed to encode testvars: %w", err)
	}

	f, err := os.CreateTemp("", "drivetest-testvars-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create testvars file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write testvars file: %w", err)
	}
	return f.Name(), nil
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

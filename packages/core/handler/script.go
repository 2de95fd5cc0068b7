package handler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/descriptor"
	"github.com/abdul-hamid-achik/drivetest/packages/core/discovery"
	"github.com/abdul-hamid-achik/drivetest/packages/core/failure"
	"github.com/abdul-hamid-achik/drivetest/packages/core/result"
	"github.com/abdul-hamid-achik/drivetest/packages/driver"
)

var (
	timeoutDirective = regexp.MustCompile(`(?m)^\s*SCRIPT_TIMEOUT\s*=\s*(\d+)\s*;`)
	contextDirective = regexp.MustCompile(`(?m)^\s*SCRIPT_CONTEXT\s*=\s*"([^"]*)"\s*;`)
)

// Directives are per-script settings declared in the script header.
type Directives struct {
	Timeout time.Duration
	Context string
}

// ParseDirectives reads SCRIPT_TIMEOUT (milliseconds) and SCRIPT_CONTEXT
// from the script source.
func ParseDirectives(src string) Directives {
	var d Directives
	if m := timeoutDirective.FindStringSubmatch(src); m != nil {
		if ms, err := strconv.Atoi(m[1]); err == nil {
			d.Timeout = time.Duration(ms) * time.Millisecond
		}
	}
	if m := contextDirective.FindStringSubmatch(src); m != nil {
		d.Context = m[1]
	}
	return d
}

// Script runs JavaScript test files inside the driver session.
type Script struct{}

func NewScript() *Script {
	return &Script{}
}

func (s *Script) Kind() Kind {
	return KindScript
}

func (s *Script) Match(name string) bool {
	return discovery.ScriptPattern.MatchString(name)
}

func (s *Script) Run(ctx context.Context, env *Env, test descriptor.Test, c *result.Collector) error {
	log := env.logger().With("test", test.Name())

	src, err := os.ReadFile(test.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.AddError(test, failure.NotFoundf(test.Path, "test file"))
			return nil
		}
		c.AddError(test, fmt.Errorf("failed to read script: %w", err))
		return nil
	}

	if env.Driver == nil {
		c.AddError(test, fmt.Errorf("no driver connection for script %s", test.Name()))
		return nil
	}

	directives := ParseDirectives(string(src))
	timeout := env.Timeout
	if directives.Timeout > 0 {
		timeout = directives.Timeout
	}

	testVars := env.TestVars
	if testVars == nil {
		testVars = map[string]any{}
	}

	log.Debug("running script", "timeout", timeout, "context", directives.Context)
	res, err := env.Driver.ExecuteScript(ctx, &driver.ScriptRequest{
		Name:    test.Name(),
		Script:  string(src),
		Args:    []any{testVars},
		Context: directives.Context,
		Timeout: timeout,
	})
	if err != nil {
		var remote *driver.RemoteError
		if errors.As(err, &remote) {
			c.AddError(test, err)
			return nil
		}
		return err
	}

	log.Debug("script finished", "passed", res.Passed, "failed", res.Failed)
	if !res.OK() {
		c.AddFailure(test, res.DescribeFailures())
		return nil
	}
	c.AddSuccess(test)
	return nil
}

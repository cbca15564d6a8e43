package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vanderheijden86/conceptmap/pkg/debug"
)

// stderrSummaryLimit caps the stderr excerpt shown per failed hook.
const stderrSummaryLimit = 200

// HookResult records one hook run.
type HookResult struct {
	Hook     Hook
	Phase    HookPhase
	Success  bool
	Stdout   string
	Stderr   string
	Error    error
	Duration time.Duration
}

// Executor runs configured hooks for one export.
type Executor struct {
	config  *Config
	export  ExportContext
	results []HookResult
}

// NewExecutor creates an executor for config. A nil config runs nothing.
func NewExecutor(config *Config, export ExportContext) *Executor {
	if config == nil {
		config = &Config{}
	}
	return &Executor{config: config, export: export}
}

// RunPreExport runs pre-export hooks in order and stops at the first failing
// hook whose on_error is "fail".
func (e *Executor) RunPreExport(ctx context.Context) error {
	for _, hook := range e.config.For(PreExport) {
		res := e.run(ctx, hook, PreExport)
		if !res.Success && hook.OnError != OnErrorContinue {
			return fmt.Errorf("pre-export hook %q failed: %w", hook.Name, res.Error)
		}
	}
	return nil
}

// RunPostExport runs every post-export hook. Failures of hooks with
// on_error "fail" are joined into the returned error.
func (e *Executor) RunPostExport(ctx context.Context) error {
	var errs []error
	for _, hook := range e.config.For(PostExport) {
		res := e.run(ctx, hook, PostExport)
		if !res.Success && hook.OnError == OnErrorFail {
			errs = append(errs, fmt.Errorf("post-export hook %q failed: %w", hook.Name, res.Error))
		}
	}
	return errors.Join(errs...)
}

func (e *Executor) run(ctx context.Context, hook Hook, phase HookPhase) HookResult {
	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", hook.Command)
	cmd.Env = append(os.Environ(), e.export.ToEnv()...)
	for k, v := range hook.Env {
		cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(v))
	}
	// Children of sh may hold the pipes open after a timeout kill.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := HookResult{
		Hook:     hook,
		Phase:    phase,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}
	switch {
	case err == nil:
		res.Success = true
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Error = fmt.Errorf("timed out after %v", timeout)
	default:
		res.Error = err
	}
	debug.Log("hooks: %s %q success=%v in %v", phase, hook.Name, res.Success, res.Duration)

	e.results = append(e.results, res)
	return res
}

// Results returns the runs so far, in execution order.
func (e *Executor) Results() []HookResult {
	return e.results
}

// Summary describes the runs for the user. It is empty when nothing ran.
func (e *Executor) Summary() string {
	if len(e.results) == 0 {
		return ""
	}
	var ok, failed int
	for _, r := range e.results {
		if r.Success {
			ok++
		} else {
			failed++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Hooks: %d succeeded, %d failed", ok, failed)
	for _, r := range e.results {
		if r.Success {
			continue
		}
		fmt.Fprintf(&sb, "\n  %s %q: %v", r.Phase, r.Hook.Name, r.Error)
		if r.Stderr != "" {
			fmt.Fprintf(&sb, "\n    stderr: %s", truncate(singleLine(r.Stderr), stderrSummaryLimit))
		}
	}
	return sb.String()
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// RunHooks loads the hooks file under projectDir and returns an executor
// for export, or nil when hooks are disabled or none are configured.
func RunHooks(projectDir string, export ExportContext, noHooks bool) (*Executor, error) {
	if noHooks {
		return nil, nil
	}
	cfg, warnings, err := Load(projectDir)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}
	if cfg.Empty() {
		return nil, nil
	}
	return NewExecutor(cfg, export), nil
}

// Package analyzer runs the external Pony analyzer for one editor request
// and translates positions across the process boundary.
package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/semaphore"
)

// Outcome labels used for metrics and the journal.
const (
	OutcomeOK          = "ok"
	OutcomeNonZeroExit = "nonzero_exit"
	OutcomeFailed      = "failed"
	OutcomeTimeout     = "timeout"
	OutcomeCancelled   = "cancelled"
	OutcomeStartError  = "start_error"
)

// Record describes one finished analyzer run.
type Record struct {
	Invocation Invocation
	Outcome    string
	ExitCode   int
	Duration   time.Duration
	OutputSize int
	Err        error
}

// Recorder receives a Record for every analyzer run.
type Recorder interface {
	RecordInvocation(ctx context.Context, rec Record)
}

// Runner runs an invocation and returns the analyzer's stdout.
type Runner interface {
	Run(ctx context.Context, inv Invocation) ([]byte, error)
}

// Invoker spawns analyzer processes, at most maxConcurrent at a time.
// Additional requests wait for a free slot or for their context to end.
type Invoker struct {
	sem      *semaphore.Weighted
	stderr   io.Writer
	logger   *slog.Logger
	recorder Recorder
}

// NewInvoker creates an invoker. The analyzer's stderr is forwarded to
// stderr unmodified; nil means os.Stderr.
func NewInvoker(maxConcurrent int, stderr io.Writer, logger *slog.Logger) *Invoker {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Invoker{
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		stderr: stderr,
		logger: logger,
	}
}

// SetRecorder installs a recorder for finished runs.
func (iv *Invoker) SetRecorder(r Recorder) {
	iv.recorder = r
}

// Run executes the analyzer synchronously, writes inv.Stdin to its input
// and returns its stdout.
//
// A non-zero exit is only an error when the analyzer wrote nothing;
// otherwise the output is returned and left to the decoder.
func (iv *Invoker) Run(ctx context.Context, inv Invocation) ([]byte, error) {
	if err := iv.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer iv.sem.Release(1)

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if inv.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, inv.Executable, inv.Args()...)
	cmd.Env = inv.Env()
	cmd.Stdin = bytes.NewReader(inv.Stdin)
	cmd.Stderr = iv.stderr
	cmd.WaitDelay = time.Second

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	iv.logger.Debug("running analyzer",
		"executable", inv.Executable,
		"args", inv.Args(),
		"stdinBytes", len(inv.Stdin))

	invocationsInFlight.Inc()
	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)
	invocationsInFlight.Dec()

	rec := Record{
		Invocation: inv,
		ExitCode:   cmd.ProcessState.ExitCode(),
		Duration:   elapsed,
		OutputSize: stdout.Len(),
	}
	out, err := iv.classify(ctx, runCtx, inv, runErr, stdout.Bytes(), &rec)
	rec.Err = err

	invocationsTotal.WithLabelValues(string(inv.Mode), rec.Outcome).Inc()
	invocationDuration.WithLabelValues(string(inv.Mode)).Observe(elapsed.Seconds())
	if iv.recorder != nil {
		iv.recorder.RecordInvocation(ctx, rec)
	}

	return out, err
}

func (iv *Invoker) classify(ctx, runCtx context.Context, inv Invocation, runErr error, out []byte, rec *Record) ([]byte, error) {
	if runErr == nil {
		rec.Outcome = OutcomeOK
		return out, nil
	}

	if ctx.Err() != nil {
		rec.Outcome = OutcomeCancelled
		return nil, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		rec.Outcome = OutcomeTimeout
		return nil, fmt.Errorf("%w after %s", ErrAnalyzerTimeout, inv.Timeout)
	}

	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		rec.Outcome = OutcomeStartError
		return nil, fmt.Errorf("%w %s: %v", ErrAnalyzerStart, inv.Executable, runErr)
	}

	if len(out) == 0 {
		rec.Outcome = OutcomeFailed
		return nil, fmt.Errorf("%w: exit code %d", ErrAnalyzerFailed, exitErr.ExitCode())
	}

	rec.Outcome = OutcomeNonZeroExit
	iv.logger.Warn("analyzer exited with non-zero status, decoding output anyway",
		"exitCode", exitErr.ExitCode(),
		"mode", inv.Mode,
		"file", inv.FilePath)
	return out, nil
}

// Night Watch - unattended observatory day-cycle engine.
//
// One invocation of `nightwatch run` drives one night: wait for dark, bring
// the mount and dome up, confirm readiness, execute the observation plan and
// put the equipment back into a safe state. Re-invocation (cron, systemd
// timer) is external.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/nightwatch/internal/daycycle"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// Process exit statuses.
const (
	exitOK      = 0
	exitFailure = 1
	exitAborted = 2
)

func main() {
	// The first SIGINT/SIGTERM cancels the cycle with an operator-abort
	// cause; the cycle still runs its shutdown sequence before exiting.
	ctx, cancel := context.WithCancelCause(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		cancel(fmt.Errorf("%w: received %s", daycycle.ErrOperatorAbort, sig))
	}()

	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	signal.Stop(sigs)
	cancel(nil)
	os.Exit(code)
}

// execute runs the CLI and maps its result to an exit status.
//
// Parameters:
//   - ctx: Cancelled on shutdown signals
//   - args: Command-line arguments without the program name
//   - stdout, stderr: Output streams
//
// Returns:
//   - int: exitOK, exitAborted for an aborted cycle, exitFailure otherwise
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var aborted *abortedError
	if errors.As(err, &aborted) {
		fmt.Fprintf(stderr, "Aborted: %v\n", aborted)
		return exitAborted
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitFailure
}

// abortedError reports a cycle that ended Aborted.
type abortedError struct {
	cycleID string
	reason  string
}

func (e *abortedError) Error() string {
	return fmt.Sprintf("cycle %s aborted: %s", e.cycleID, e.reason)
}

// internal/netbridge/bridge.go
package netbridge

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tamzrod/gsmlink/internal/logging"
)

// Commands are the argv lists for the privileged PPP operations.
type Commands struct {
	Dial     []string
	Hangup   []string
	AddRoute []string
}

// DefaultCommands drive the "gprs" peer through pppd's pon/poff helpers.
func DefaultCommands() Commands {
	return Commands{
		Dial:     []string{"sudo", "pon", "gprs"},
		Hangup:   []string{"sudo", "poff", "gprs"},
		AddRoute: []string{"sudo", "route", "add", "-net", "0.0.0.0", "ppp0"},
	}
}

// Runner executes one OS command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, argv []string) (string, error)
}

// ExecRunner runs commands with os/exec. The context bounds the process.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, argv []string) (string, error) {
	if len(argv) == 0 {
		return "", errors.New("netbridge: empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return string(out), fmt.Errorf("command timed out: %w", ctx.Err())
	}
	return string(out), err
}

// CommandError carries what a failed command printed.
type CommandError struct {
	Op       string
	Argv     []string
	ExitCode int // -1 when the process did not exit normally
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("netbridge: %s: %q failed (exit code %d): %v", e.Op, strings.Join(e.Argv, " "), e.ExitCode, e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Bridge starts and stops the PPP session and routes default traffic over it.
type Bridge struct {
	cmds Commands
	run  Runner
	log  logging.Logger
}

// New builds a Bridge. A nil runner uses ExecRunner.
func New(cmds Commands, run Runner, log logging.Logger) *Bridge {
	if run == nil {
		run = ExecRunner{}
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Bridge{cmds: cmds, run: run, log: log}
}

// Dial starts the PPP session.
func (b *Bridge) Dial(ctx context.Context) error {
	b.log.Debug(ctx, "Starting PPP")
	return b.exec(ctx, "dial", b.cmds.Dial)
}

// Hangup stops the PPP session.
func (b *Bridge) Hangup(ctx context.Context) error {
	b.log.Debug(ctx, "Stopping PPP")
	return b.exec(ctx, "hangup", b.cmds.Hangup)
}

// AddRoute adds the default route over the PPP interface.
func (b *Bridge) AddRoute(ctx context.Context) error {
	b.log.Debug(ctx, "Adding route")
	return b.exec(ctx, "route", b.cmds.AddRoute)
}

func (b *Bridge) exec(ctx context.Context, op string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("netbridge: %s: no command configured", op)
	}

	out, err := b.run.Run(ctx, argv)
	if err == nil {
		return nil
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &CommandError{
		Op:       op,
		Argv:     argv,
		ExitCode: code,
		Output:   strings.TrimSpace(out),
		Err:      err,
	}
}

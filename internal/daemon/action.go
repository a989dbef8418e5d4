package daemon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// Default external commands for the built-in power actions.
const (
	DefaultRebootCommand   = "/sbin/reboot"
	DefaultShutdownCommand = "/sbin/shutdown -h 0"
)

// Action is what a button press does. A returned error stops the daemon.
type Action func(ctx context.Context) error

// Privilege describes how external commands are elevated. With every field
// empty commands run unprefixed.
type Privilege struct {
	// Sudo prefixes commands with sudo even without a user or password,
	// relying on a NOPASSWD rule.
	Sudo bool
	// User runs commands as this user (sudo -u).
	User string
	// Password is piped to sudo -S on stdin.
	Password string
}

func (p Privilege) enabled() bool {
	return p.Sudo || p.User != "" || p.Password != ""
}

// Wrap returns the program, arguments and stdin that run argv under p.
func (p Privilege) Wrap(argv []string) (name string, args []string, stdin io.Reader) {
	if !p.enabled() {
		return argv[0], argv[1:], nil
	}
	if p.Password != "" {
		args = append(args, "-S")
		stdin = strings.NewReader(p.Password + "\n")
	}
	if p.User != "" {
		args = append(args, "-u", p.User)
	}
	return "sudo", append(args, argv...), stdin
}

// Runner starts a program, waits for it and returns its combined output.
type Runner func(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error)

// execRunner ignores ctx: a started command outlives daemon cancellation.
func execRunner(_ context.Context, name string, args []string, stdin io.Reader) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdin = stdin
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// shellRun runs argv through the privilege wrapper. A non-zero exit status
// is logged, not returned; failing to start the program is an error.
func (d *Daemon) shellRun(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("daemon: empty command")
	}
	name, args, stdin := d.priv.Wrap(argv)
	d.log.Info("daemon: running command", "cmd", strings.Join(argv, " "), "sudo", d.priv.enabled())
	out, err := d.run(ctx, name, args, stdin)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		d.log.Warn("daemon: command exited with error",
			"cmd", argv[0], "code", exitErr.ExitCode(), "output", strings.TrimSpace(string(out)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("daemon: run %s: %w", argv[0], err)
	}
	d.log.Debug("daemon: command finished", "cmd", argv[0], "output", strings.TrimSpace(string(out)))
	return nil
}

// splitCommand tokenizes a command line without invoking a shell.
func splitCommand(cmdline string) ([]string, error) {
	argv, err := shlex.Split(cmdline)
	if err != nil {
		return nil, fmt.Errorf("daemon: parse command %q: %w", cmdline, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("daemon: empty command %q", cmdline)
	}
	return argv, nil
}

// isScript reports whether path names an existing regular file.
func isScript(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

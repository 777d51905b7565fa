// Package host finds, stops and launches the desktop chat application with
// remote debugging enabled.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v3/process"
)

// DefaultProcessNames are the executable names of the new and classic
// clients, without extension.
var DefaultProcessNames = []string{"ms-teams", "teams"}

var ErrNoExecutable = errors.New("host executable path is not configured")

// Host controls the application process.
type Host struct {
	ExePath       string
	DebugPort     int
	EnableLogging bool
	Names         []string
	Log           *slog.Logger
}

func (h *Host) logger() *slog.Logger {
	if h.Log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return h.Log
}

func (h *Host) names() []string {
	if len(h.Names) == 0 {
		return DefaultProcessNames
	}
	return h.Names
}

func (h *Host) matches(name string) bool {
	name = strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	return lo.Contains(h.names(), name)
}

// Find returns running processes of the application.
func (h *Host) Find(ctx context.Context) ([]*process.Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}
	return lo.Filter(procs, func(p *process.Process, _ int) bool {
		name, err := p.NameWithContext(ctx)
		return err == nil && h.matches(name)
	}), nil
}

// DiscoverExecutable returns the executable path of a running instance.
func (h *Host) DiscoverExecutable(ctx context.Context) (string, bool) {
	procs, err := h.Find(ctx)
	if err != nil {
		return "", false
	}
	for _, p := range procs {
		if exe, err := p.ExeWithContext(ctx); err == nil && exe != "" {
			return exe, true
		}
	}
	return "", false
}

// Kill terminates every running instance and returns how many were killed.
func (h *Host) Kill(ctx context.Context) (int, error) {
	procs, err := h.Find(ctx)
	if err != nil {
		return 0, err
	}
	killed := 0
	for _, p := range procs {
		if err := p.KillWithContext(ctx); err != nil {
			h.logger().Warn("could not kill process", "pid", p.Pid, "err", err)
			continue
		}
		killed++
	}
	return killed, nil
}

// Args are the command-line flags the application is launched with.
func (h *Host) Args() []string {
	args := []string{fmt.Sprintf("--remote-debugging-port=%d", h.DebugPort)}
	if h.EnableLogging {
		args = append(args, "--enable-logging")
	}
	return args
}

// Launch starts the application detached from this process.
func (h *Host) Launch() error {
	if h.ExePath == "" {
		return ErrNoExecutable
	}
	cmd := exec.Command(h.ExePath, h.Args()...)
	cmd.Dir = filepath.Dir(h.ExePath)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", h.ExePath, err)
	}
	h.logger().Info("host started", "pid", cmd.Process.Pid, "args", strings.Join(h.Args(), " "))
	return cmd.Process.Release()
}

// Restart kills running instances, waits for them to exit and launches a
// fresh one with debugging enabled.
func (h *Host) Restart(ctx context.Context) error {
	n, err := h.Kill(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		h.logger().Info("stopped running host", "processes", n)
		deadline := time.Now().Add(10 * time.Second)
		for time.Now().Before(deadline) {
			procs, err := h.Find(ctx)
			if err != nil || len(procs) == 0 {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(250 * time.Millisecond):
			}
		}
	}
	return h.Launch()
}

// DebuggerURL is the endpoint that answers once the debugging port is open.
func (h *Host) DebuggerURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/json/version", h.DebugPort)
}

// WaitForDebugger polls the debugging endpoint until it answers or ctx ends.
func (h *Host) WaitForDebugger(ctx context.Context, interval time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.DebuggerURL(), nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for debugger on port %d: %w", h.DebugPort, ctx.Err())
		case <-time.After(interval):
		}
	}
}

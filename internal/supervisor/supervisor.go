// Package supervisor runs independent long-lived jobs as child processes,
// forwards termination signals to them and bounds the shutdown time.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"ListingHarvester/pkg/config"
)

// DefaultGracePeriod is how long jobs get to exit after a forwarded signal.
const DefaultGracePeriod = 5 * time.Second

// ErrGracePeriodExceeded is returned when jobs outlive the grace period.
var ErrGracePeriodExceeded = errors.New("jobs did not exit within the grace period")

// State is the supervisor lifecycle position.
type State int

const (
	Starting State = iota
	Running
	ShuttingDown
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// JobSpec describes one child process.
type JobSpec struct {
	Name string
	Path string
	Args []string
	// MaxMemoryMB is passed to the child as a GOMEMLIMIT soft heap ceiling.
	MaxMemoryMB int
	Env         map[string]string
}

// JobSpecFromOptions converts a config file entry.
func JobSpecFromOptions(o config.JobOptions) JobSpec {
	return JobSpec{Name: o.Name, Path: o.Path, Args: o.Args, MaxMemoryMB: o.MaxMemoryMB, Env: o.Env}
}

// JobStatus is a snapshot of one job.
type JobStatus struct {
	Name     string `json:"name"`
	PID      int    `json:"pid"`
	Running  bool   `json:"running"`
	ExitCode int    `json:"exit_code"`
	Err      string `json:"error,omitempty"`
}

type job struct {
	spec   JobSpec
	cmd    *exec.Cmd
	status JobStatus
}

// Supervisor manages a fixed set of jobs.
type Supervisor struct {
	// GracePeriod bounds the wait after signals are forwarded.
	GracePeriod time.Duration

	logger arbor.ILogger
	specs  []JobSpec
	exit   func(int)

	mu    sync.Mutex
	state State
	jobs  []*job
}

// New returns a supervisor for specs.
func New(logger arbor.ILogger, specs ...JobSpec) *Supervisor {
	return &Supervisor{
		GracePeriod: DefaultGracePeriod,
		logger:      logger,
		specs:       specs,
		exit:        os.Exit,
	}
}

// NotifySignals subscribes to SIGINT and SIGTERM. Call stop to unsubscribe.
func NotifySignals() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch, func() { signal.Stop(ch) }
}

// Run starts every job and blocks until all of them have exited, or until a
// signal arrives on signals. A received signal is forwarded to every running
// job; if they are still alive after GracePeriod the supervisor forces its own
// exit with status 1. Cancelling ctx behaves like SIGTERM.
func (s *Supervisor) Run(ctx context.Context, signals <-chan os.Signal) error {
	s.setState(Starting)

	var wg sync.WaitGroup
	for _, spec := range s.specs {
		j := s.launch(spec)
		s.mu.Lock()
		s.jobs = append(s.jobs, j)
		s.mu.Unlock()
		if j.cmd == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.wait(j)
		}()
	}

	allExited := make(chan struct{})
	go func() {
		wg.Wait()
		close(allExited)
	}()

	s.setState(Running)

	var sig os.Signal
	select {
	case <-allExited:
		s.setState(Stopped)
		s.logger.Info().Msg("All jobs exited")
		return nil
	case sig = <-signals:
	case <-ctx.Done():
		sig = syscall.SIGTERM
	}

	s.setState(ShuttingDown)
	s.logger.Info().Str("signal", sig.String()).Str("grace_period", s.GracePeriod.String()).Msg("Shutting down jobs")
	s.forward(sig)

	timer := time.NewTimer(s.GracePeriod)
	defer timer.Stop()

	select {
	case <-allExited:
		s.setState(Stopped)
		s.logger.Info().Msg("All jobs exited after shutdown signal")
		return nil
	case <-timer.C:
		s.setState(Stopped)
		s.logger.Warn().Strs("running", s.runningNames()).Msg("Grace period exceeded, forcing exit")
		s.exit(1)
		return ErrGracePeriodExceeded
	}
}

func (s *Supervisor) launch(spec JobSpec) *job {
	j := &job{spec: spec, status: JobStatus{Name: spec.Name, ExitCode: -1}}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if spec.MaxMemoryMB > 0 {
		cmd.Env = append(cmd.Env, fmt.Sprintf("GOMEMLIMIT=%dMiB", spec.MaxMemoryMB))
	}
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if err := cmd.Start(); err != nil {
		s.logger.Error().Err(err).Str("job", spec.Name).Str("path", spec.Path).Msg("Failed to start job")
		j.status.Err = err.Error()
		return j
	}

	j.cmd = cmd
	j.status.PID = cmd.Process.Pid
	j.status.Running = true
	s.logger.Info().Str("job", spec.Name).Int("pid", j.status.PID).Msg("Job started")
	return j
}

func (s *Supervisor) wait(j *job) {
	err := j.cmd.Wait()
	code := j.cmd.ProcessState.ExitCode()

	s.mu.Lock()
	j.status.Running = false
	j.status.ExitCode = code
	if err != nil {
		j.status.Err = err.Error()
	}
	s.mu.Unlock()

	if code != 0 {
		s.logger.Error().Str("job", j.spec.Name).Int("exit_code", code).Err(err).Msg("Job exited with error")
		return
	}
	s.logger.Info().Str("job", j.spec.Name).Int("exit_code", code).Msg("Job exited")
}

func (s *Supervisor) forward(sig os.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.cmd == nil || !j.status.Running {
			continue
		}
		if err := j.cmd.Process.Signal(sig); err != nil {
			s.logger.Warn().Err(err).Str("job", j.spec.Name).Msg("Failed to forward signal")
		}
	}
}

// Kill force-kills every job still running.
func (s *Supervisor) Kill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.cmd != nil && j.status.Running {
			_ = j.cmd.Process.Kill()
		}
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Statuses returns a snapshot of every launched job, in launch order.
func (s *Supervisor) Statuses() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.status)
	}
	return out
}

func (s *Supervisor) runningNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, j := range s.jobs {
		if j.status.Running {
			names = append(names, j.spec.Name)
		}
	}
	return names
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

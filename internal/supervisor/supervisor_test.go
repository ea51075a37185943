package supervisor

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// TestHelperProcess is not a real test. It is the child process launched by
// the tests below, behaving according to HELPER_MODE.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	sigs := make(chan os.Signal, 1)
	switch os.Getenv("HELPER_MODE") {
	case "ignore":
		signal.Ignore(syscall.SIGTERM, syscall.SIGINT)
	default:
		signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)
	}
	if ready := os.Getenv("HELPER_READY"); ready != "" {
		_ = os.WriteFile(ready, []byte("ok"), 0o644)
	}

	switch os.Getenv("HELPER_MODE") {
	case "exit1":
		time.Sleep(50 * time.Millisecond)
		os.Exit(1)
	case "exit0":
		os.Exit(0)
	case "run":
		switch <-sigs {
		case syscall.SIGINT:
			os.Exit(3)
		default:
			os.Exit(0)
		}
	case "ignore":
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	os.Exit(2)
}

func helperJob(t *testing.T, name, mode string) (JobSpec, string) {
	ready := filepath.Join(t.TempDir(), name+".ready")
	return JobSpec{
		Name:        name,
		Path:        os.Args[0],
		Args:        []string{"-test.run=TestHelperProcess", "--"},
		MaxMemoryMB: 64,
		Env: map[string]string{
			"GO_WANT_HELPER_PROCESS": "1",
			"HELPER_MODE":            mode,
			"HELPER_READY":           ready,
		},
	}, ready
}

func waitReady(t *testing.T, paths ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, p := range paths {
			if _, err := os.Stat(p); err != nil {
				return false
			}
		}
		return true
	}, 10*time.Second, 10*time.Millisecond)
}

func status(s *Supervisor, name string) JobStatus {
	for _, st := range s.Statuses() {
		if st.Name == name {
			return st
		}
	}
	return JobStatus{}
}

type runResult struct {
	err      error
	returned time.Time
}

func start(s *Supervisor, signals <-chan os.Signal) <-chan runResult {
	done := make(chan runResult, 1)
	go func() {
		err := s.Run(context.Background(), signals)
		done <- runResult{err: err, returned: time.Now()}
	}()
	return done
}

func TestFailingJobDoesNotStopSiblings(t *testing.T) {
	a, readyA := helperJob(t, "a", "exit1")
	b, readyB := helperJob(t, "b", "run")
	s := New(arbor.NewLogger(), a, b)
	s.exit = func(int) { t.Error("supervisor must not force exit") }

	signals := make(chan os.Signal, 1)
	done := start(s, signals)
	waitReady(t, readyA, readyB)

	require.Eventually(t, func() bool {
		st := status(s, "a")
		return !st.Running && st.ExitCode == 1
	}, 10*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.True(t, status(s, "b").Running)
	assert.Equal(t, Running, s.State())

	signals <- syscall.SIGTERM
	select {
	case res := <-done:
		require.NoError(t, res.err)
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not return")
	}
	assert.Equal(t, 0, status(s, "b").ExitCode)
	assert.Equal(t, Stopped, s.State())
}

func TestSignalIsForwardedToEveryJob(t *testing.T) {
	a, readyA := helperJob(t, "a", "run")
	b, readyB := helperJob(t, "b", "run")
	s := New(arbor.NewLogger(), a, b)

	signals := make(chan os.Signal, 1)
	done := start(s, signals)
	waitReady(t, readyA, readyB)

	signals <- syscall.SIGINT
	select {
	case res := <-done:
		require.NoError(t, res.err)
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not return")
	}

	assert.Equal(t, 3, status(s, "a").ExitCode)
	assert.Equal(t, 3, status(s, "b").ExitCode)
}

func TestGracePeriodForcesExit(t *testing.T) {
	a, readyA := helperJob(t, "a", "ignore")
	b, readyB := helperJob(t, "b", "run")
	s := New(arbor.NewLogger(), a, b)
	s.GracePeriod = 200 * time.Millisecond
	exitCode := make(chan int, 1)
	s.exit = func(code int) { exitCode <- code }
	defer s.Kill()

	signals := make(chan os.Signal, 1)
	done := start(s, signals)
	waitReady(t, readyA, readyB)

	sent := time.Now()
	signals <- syscall.SIGTERM

	select {
	case res := <-done:
		assert.ErrorIs(t, res.err, ErrGracePeriodExceeded)
		assert.Less(t, res.returned.Sub(sent), 3*time.Second)
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not force exit")
	}
	assert.Equal(t, 1, <-exitCode)
	assert.True(t, status(s, "a").Running)
	assert.Equal(t, Stopped, s.State())
}

func TestLaunchFailureDoesNotAbortSiblings(t *testing.T) {
	ok, _ := helperJob(t, "ok", "exit0")
	missing := JobSpec{Name: "missing", Path: filepath.Join(t.TempDir(), "no-such-binary")}
	s := New(arbor.NewLogger(), missing, ok)

	err := s.Run(context.Background(), nil)
	require.NoError(t, err)

	st := s.Statuses()
	require.Len(t, st, 2)
	assert.NotEmpty(t, st[0].Err)
	assert.False(t, st[0].Running)
	assert.Equal(t, 0, st[1].ExitCode)
}

func TestContextCancelActsAsSigterm(t *testing.T) {
	a, readyA := helperJob(t, "a", "run")
	s := New(arbor.NewLogger(), a)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, nil) }()
	waitReady(t, readyA)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not return")
	}
	assert.Equal(t, 0, status(s, "a").ExitCode)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "starting", Starting.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "shutting_down", ShuttingDown.String())
	assert.Equal(t, "stopped", Stopped.String())
}

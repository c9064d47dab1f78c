//go:build integration

package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/wav"
)

func buildBinary(t testing.TB) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "murmur_test")
	buildCmd := exec.Command("go", "build", "-o", bin, ".")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, out)
	}
	return bin
}

// testEnv isolates config and data under a temporary home
func testEnv(t testing.TB) []string {
	t.Helper()
	home := t.TempDir()
	return append(os.Environ(),
		"HOME="+home,
		"MURMUR_DATA_DIR="+filepath.Join(home, "data"),
	)
}

func writeSilence(t testing.TB, dir string, d time.Duration) string {
	t.Helper()
	format := beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
	path := filepath.Join(dir, "silence.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	if err := wav.Encode(f, generators.Silence(format.SampleRate.N(d)), format); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func run(t *testing.T, bin string, env []string, args ...string) string {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Env = env
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %v failed: %v\n%s", bin, args, err, out)
	}
	return string(out)
}

// TestHeadlessLifecycle adds a track, plays it headless and stops on SIGINT
func TestHeadlessLifecycle(t *testing.T) {
	bin := buildBinary(t)
	env := testEnv(t)
	track := writeSilence(t, t.TempDir(), 300*time.Millisecond)

	run(t, bin, env, "library", "add", track)
	if out := run(t, bin, env, "library", "list"); !strings.Contains(out, "silence") {
		t.Fatalf("library list missing track:\n%s", out)
	}

	cmd := exec.Command(bin, "play", "--headless", "--null-audio", "--autoplay", "--log-level", "debug")
	cmd.Env = env
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start player: %v", err)
	}

	// Let the track end and restart at least once
	time.Sleep(1 * time.Second)

	if out := run(t, bin, env, "now"); !strings.Contains(out, "silence") {
		t.Errorf("now = %q, want the playing track", out)
	}

	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		t.Fatalf("Failed to signal player: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("player exited with error: %v", err)
		}
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		t.Error("Player did not stop within 5 seconds")
	}
}

// TestNowWithoutSelection exits 1 when nothing has been selected
func TestNowWithoutSelection(t *testing.T) {
	bin := buildBinary(t)
	env := testEnv(t)

	cmd := exec.Command(bin, "now")
	cmd.Env = env
	err := cmd.Run()

	exitErr, ok := err.(*exec.ExitError)
	if !ok || exitErr.ExitCode() != 1 {
		t.Errorf("now without selection = %v, want exit status 1", err)
	}
}

// TestPreferencesCommands persists loop and mute through the config file
func TestPreferencesCommands(t *testing.T) {
	bin := buildBinary(t)
	env := testEnv(t)

	run(t, bin, env, "loop", "single")
	run(t, bin, env, "mute", "on")

	out := run(t, bin, env, "loop")
	if !strings.Contains(out, "like") {
		t.Errorf("cycling from single = %q, want like", out)
	}
	out = run(t, bin, env, "mute")
	if !strings.Contains(out, "unmuted") {
		t.Errorf("toggling mute = %q, want unmuted", out)
	}
}

// BenchmarkNowCommand benchmarks the performance of the "now" command
func BenchmarkNowCommand(b *testing.B) {
	bin := buildBinary(b)
	env := testEnv(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cmd := exec.Command(bin, "now")
		cmd.Env = env
		_ = cmd.Run()
	}
}

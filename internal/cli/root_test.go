package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lydakis/trajbridge/internal/daemon"
	"github.com/lydakis/trajbridge/internal/ipc"
	"github.com/lydakis/trajbridge/internal/version"
)

func captureOutput(t *testing.T, stdin string) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	oldIn, oldOut, oldErr := rootStdin, rootStdout, rootStderr
	t.Cleanup(func() {
		rootStdin, rootStdout, rootStderr = oldIn, oldOut, oldErr
	})

	var out, errOut bytes.Buffer
	rootStdin = strings.NewReader(stdin)
	rootStdout = &out
	rootStderr = &errOut
	return &out, &errOut
}

func stubDaemon(t *testing.T, err error) *daemon.Options {
	t.Helper()
	old := runDaemon
	t.Cleanup(func() { runDaemon = old })

	got := new(daemon.Options)
	runDaemon = func(_ context.Context, opts daemon.Options) error {
		*got = opts
		return err
	}
	return got
}

func TestRunVersion(t *testing.T) {
	out, errOut := captureOutput(t, "")

	if code := run(context.Background(), []string{"version"}); code != exitOK {
		t.Fatalf("code = %d, want %d", code, exitOK)
	}
	want := "trajbridge " + version.Version + "\n"
	if out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}
	if errOut.Len() != 0 {
		t.Fatalf("stderr = %q, want empty", errOut.String())
	}
}

func TestRunHelp(t *testing.T) {
	out, _ := captureOutput(t, "")

	if code := run(context.Background(), []string{"--help"}); code != exitOK {
		t.Fatalf("code = %d, want %d", code, exitOK)
	}
	if !strings.Contains(out.String(), "trajbridge request") {
		t.Fatalf("help output missing command surface: %q", out.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	_, errOut := captureOutput(t, "")

	if code := run(context.Background(), []string{"launch"}); code != exitUsage {
		t.Fatalf("code = %d, want %d", code, exitUsage)
	}
	if !strings.Contains(errOut.String(), "unknown command: launch") {
		t.Fatalf("stderr = %q, want unknown command", errOut.String())
	}
}

func TestServeIsDefaultCommand(t *testing.T) {
	captureOutput(t, "")
	got := stubDaemon(t, nil)

	if code := run(context.Background(), nil); code != exitOK {
		t.Fatalf("code = %d, want %d", code, exitOK)
	}
	if got.ConfigPath != "" || got.Socket != "" || got.Verbose {
		t.Fatalf("options = %+v, want zero overrides", *got)
	}
	if got.LogOutput == nil {
		t.Fatal("LogOutput = nil, want stderr writer")
	}
}

func TestServePassesFlagsToDaemon(t *testing.T) {
	captureOutput(t, "")
	got := stubDaemon(t, nil)

	args := []string{"serve", "--config", "/etc/tb.toml", "--socket", "/tmp/tb.sock", "-v", "--disconnect-policy", "shutdown"}
	if code := run(context.Background(), args); code != exitOK {
		t.Fatalf("code = %d, want %d", code, exitOK)
	}
	if got.ConfigPath != "/etc/tb.toml" {
		t.Fatalf("ConfigPath = %q, want /etc/tb.toml", got.ConfigPath)
	}
	if got.Socket != "/tmp/tb.sock" {
		t.Fatalf("Socket = %q, want /tmp/tb.sock", got.Socket)
	}
	if !got.Verbose {
		t.Fatal("Verbose = false, want true")
	}
	if got.DisconnectPolicy != "shutdown" {
		t.Fatalf("DisconnectPolicy = %q, want shutdown", got.DisconnectPolicy)
	}
}

func TestServeBareFlagsSelectServe(t *testing.T) {
	captureOutput(t, "")
	got := stubDaemon(t, nil)

	if code := run(context.Background(), []string{"--socket", "/tmp/x.sock"}); code != exitOK {
		t.Fatalf("code = %d, want %d", code, exitOK)
	}
	if got.Socket != "/tmp/x.sock" {
		t.Fatalf("Socket = %q, want /tmp/x.sock", got.Socket)
	}
}

func TestServeStartupFailureExitsNonZero(t *testing.T) {
	_, errOut := captureOutput(t, "")
	stubDaemon(t, errors.New("binding socket: address in use"))

	if code := run(context.Background(), []string{"serve"}); code != exitError {
		t.Fatalf("code = %d, want %d", code, exitError)
	}
	if !strings.Contains(errOut.String(), "address in use") {
		t.Fatalf("stderr = %q, want startup error", errOut.String())
	}
}

func TestServeRejectsUnknownFlag(t *testing.T) {
	captureOutput(t, "")
	stubDaemon(t, nil)

	if code := run(context.Background(), []string{"serve", "--bogus"}); code != exitUsage {
		t.Fatalf("code = %d, want %d", code, exitUsage)
	}
}

func startBridge(t *testing.T, handler ipc.Handler) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "tbc-")
	if err != nil {
		t.Fatalf("creating temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	srv, err := ipc.Listen(filepath.Join(dir, "b.sock"), handler, ipc.Options{ReadSize: 4096})
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Serve(ctx)
	return srv.SocketPath()
}

func TestRequestSendsEnvelopeAndPrintsResponse(t *testing.T) {
	seenCh := make(chan []byte, 1)
	socket := startBridge(t, func(_ context.Context, msg []byte) []byte {
		seenCh <- append([]byte(nil), msg...)
		return []byte(`[{"altitude": 0}]`)
	})
	out, _ := captureOutput(t, `{"launch_site": "X"}`)

	code := run(context.Background(), []string{"request", "--socket", socket, "--guidance"})
	if code != exitOK {
		t.Fatalf("code = %d, want %d", code, exitOK)
	}
	if out.String() != "[{\"altitude\": 0}]\n" {
		t.Fatalf("output = %q, want response line", out.String())
	}
	seen := <-seenCh
	if !bytes.Contains(seen, []byte(`"is_guidance":true`)) || !bytes.Contains(seen, []byte(`"include_metadata":false`)) {
		t.Fatalf("bridge saw %s, want both control flags", seen)
	}
}

func TestRequestErrorResponseExitsNonZero(t *testing.T) {
	socket := startBridge(t, func(context.Context, []byte) []byte {
		return ipc.EncodeError(ipc.CodeOutOfRange, "unsupported time range")
	})
	out, errOut := captureOutput(t, `{}`)

	if code := run(context.Background(), []string{"request", "--socket", socket}); code != exitError {
		t.Fatalf("code = %d, want %d", code, exitError)
	}
	if !strings.Contains(out.String(), ipc.CodeOutOfRange) {
		t.Fatalf("stdout = %q, want error payload", out.String())
	}
	if !strings.Contains(errOut.String(), "unsupported time range") {
		t.Fatalf("stderr = %q, want error message", errOut.String())
	}
}

func TestRequestRejectsInvalidPayload(t *testing.T) {
	captureOutput(t, `{"launch_site": `)

	if code := run(context.Background(), []string{"request", "--socket", "/nonexistent.sock"}); code != exitUsage {
		t.Fatalf("code = %d, want %d", code, exitUsage)
	}
}

func TestRequestFailsWithoutBridge(t *testing.T) {
	_, errOut := captureOutput(t, `{}`)
	socket := filepath.Join(t.TempDir(), "none.sock")

	if code := run(context.Background(), []string{"request", "--socket", socket}); code != exitError {
		t.Fatalf("code = %d, want %d", code, exitError)
	}
	if !strings.Contains(errOut.String(), "connecting to bridge") {
		t.Fatalf("stderr = %q, want connect error", errOut.String())
	}
}

func TestRequestUsesConfiguredSocket(t *testing.T) {
	socket := startBridge(t, func(context.Context, []byte) []byte { return []byte(`[]`) })
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfgPath, []byte("socket = \""+socket+"\"\n"), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	out, _ := captureOutput(t, `{}`)

	if code := run(context.Background(), []string{"request", "--config", cfgPath}); code != exitOK {
		t.Fatalf("code = %d, want %d", code, exitOK)
	}
	if out.String() != "[]\n" {
		t.Fatalf("output = %q, want %q", out.String(), "[]\n")
	}
}

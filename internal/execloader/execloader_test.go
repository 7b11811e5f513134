package execloader

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/kblabs/kb/internal/command"
)

// writeScript writes an executable shell script that echoes a single JSON
// response line, simulating an exec-loader plugin.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "plugin.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestHandle_SuccessResponse(t *testing.T) {
	path := writeScript(t, `echo '{"exitCode":0,"events":["did-a-thing"]}'`)
	h := New(path)

	ctx := &command.Context{Context: context.Background()}
	res, err := h(ctx, []string{"sync"}, map[string]any{"force": true})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestHandle_NonZeroExitCodeInResponse(t *testing.T) {
	path := writeScript(t, `echo '{"exitCode":3}'`)
	h := New(path)

	ctx := &command.Context{Context: context.Background()}
	res, err := h(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestHandle_ResponseErrorFieldSurfacesAsError(t *testing.T) {
	path := writeScript(t, `echo '{"exitCode":1,"error":"boom"}'`)
	h := New(path)

	ctx := &command.Context{Context: context.Background()}
	res, err := h(ctx, nil, nil)
	if err == nil {
		t.Fatal("Handle() error = nil, want error from response.Error")
	}
	if res.ExitCode != 1 {
		t.Fatalf("ExitCode = %d, want 1", res.ExitCode)
	}
}

func TestHandle_NoOutputIsAnError(t *testing.T) {
	path := writeScript(t, `exit 1`)
	h := New(path)

	ctx := &command.Context{Context: context.Background()}
	_, err := h(ctx, nil, nil)
	if err == nil {
		t.Fatal("Handle() error = nil, want error when subprocess produces no output")
	}
}

func TestDecodeResponse_SkipsBlankLines(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("\n\n")
	buf.WriteString(`{"exitCode":0}`)
	buf.WriteString("\n")
	resp, err := decodeResponse(&buf)
	if err != nil {
		t.Fatalf("decodeResponse() error = %v", err)
	}
	if resp.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, want 0", resp.ExitCode)
	}
}

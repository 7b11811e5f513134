// Package execloader implements the ExecLoader of SPEC_FULL.md §B.1: the
// ManifestV2 plugin command is invoked as a subprocess communicating over
// a line-delimited JSON stdio protocol, the fallback design spec.md §9
// prescribes for a statically compiled host that cannot execute a
// plugin's own language in-process. Subprocess wiring (exec.Command,
// exec.ExitError handling) grounded on kcli/internal/plugin.Run.
package execloader

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/kblabs/kb/internal/command"
)

// Request is the single JSON line written to the subprocess's stdin.
type Request struct {
	Argv  []string       `json:"argv"`
	Flags map[string]any `json:"flags"`
	Env   map[string]string `json:"env,omitempty"`
}

// Response is the single JSON line read back from the subprocess's stdout.
type Response struct {
	ExitCode int      `json:"exitCode"`
	Events   []string `json:"events,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Loader invokes execPath as a subprocess for one command dispatch.
type Loader struct {
	ExecPath string
}

// New returns a command.Handler that runs the subprocess at execPath,
// satisfying the lazy handler-load step of spec.md §4.F.5 for v2
// manifests.
func New(execPath string) command.Handler {
	l := &Loader{ExecPath: execPath}
	return l.Handle
}

// Handle implements command.Handler by writing a Request to the
// subprocess's stdin and decoding its Response from stdout.
func (l *Loader) Handle(ctx *command.Context, argv []string, flags map[string]any) (command.Result, error) {
	req := Request{Argv: argv, Flags: flags}
	payload, err := json.Marshal(req)
	if err != nil {
		return command.Result{}, fmt.Errorf("encoding exec request: %w", err)
	}

	cmd := exec.CommandContext(ctx.Context, l.ExecPath)
	cmd.Stdin = bytes.NewReader(append(payload, '\n'))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	resp, decodeErr := decodeResponse(&stdout)
	if decodeErr != nil {
		if runErr != nil {
			return command.Result{}, fmt.Errorf("exec loader %s failed: %w (stderr: %s)", l.ExecPath, runErr, stderr.String())
		}
		return command.Result{}, fmt.Errorf("decoding exec response from %s: %w", l.ExecPath, decodeErr)
	}
	if resp.Error != "" {
		return command.Result{ExitCode: resp.ExitCode}, fmt.Errorf("%s", resp.Error)
	}
	return command.Result{ExitCode: resp.ExitCode}, nil
}

// decodeResponse reads the first JSON line from r.
func decodeResponse(r *bytes.Buffer) (Response, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil {
			return Response{}, err
		}
		return resp, nil
	}
	if err := scanner.Err(); err != nil {
		return Response{}, err
	}
	return Response{}, fmt.Errorf("no output from subprocess")
}

package cli

import (
	"bytes"
	"testing"

	"github.com/kblabs/kb/internal/command"
	"github.com/kblabs/kb/internal/dispatcher"
)

type stubRunner struct {
	gotArgv   []string
	gotCtx    *command.Context
	outcome   dispatcher.Outcome
}

func (s *stubRunner) Run(ctx *command.Context, argv []string) dispatcher.Outcome {
	s.gotArgv = argv
	s.gotCtx = ctx
	return s.outcome
}

func TestNewRootCommandPassesArgvToDispatcher(t *testing.T) {
	var out, errOut bytes.Buffer
	stub := &stubRunner{outcome: dispatcher.Outcome{ExitCode: 0}}
	cmd := NewRootCommand(stub, "/workspace", &out, &errOut)
	cmd.SetArgs([]string{"hello"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(stub.gotArgv) != 1 || stub.gotArgv[0] != "hello" {
		t.Fatalf("got argv %v, want [hello]", stub.gotArgv)
	}
}

func TestNewRootCommandJSONFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	stub := &stubRunner{outcome: dispatcher.Outcome{ExitCode: 0}}
	cmd := NewRootCommand(stub, "/workspace", &out, &errOut)
	cmd.SetArgs([]string{"--json", "hello"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if stub.gotCtx == nil || !stub.gotCtx.Global.JSON {
		t.Fatalf("expected Global.JSON=true, got %+v", stub.gotCtx)
	}
}

func TestNewRootCommandZeroExitReturnsNil(t *testing.T) {
	// Exercises the zero-exit path only: os.Exit on a non-zero Outcome
	// would terminate the test binary, so this test sticks to ExitCode 0.
	var out, errOut bytes.Buffer
	stub := &stubRunner{outcome: dispatcher.Outcome{ExitCode: 0, Message: ""}}
	cmd := NewRootCommand(stub, "/workspace", &out, &errOut)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
}

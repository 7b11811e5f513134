package command

import (
	"testing"

	"github.com/kblabs/kb/internal/manifestmodel"
)

func TestCommand_ID(t *testing.T) {
	c := Command{Registered: manifestmodel.RegisteredCommand{Manifest: manifestmodel.Manifest{ID: "deploy"}}}
	if got := c.ID(); got != "deploy" {
		t.Fatalf("ID() = %q, want deploy", got)
	}
}

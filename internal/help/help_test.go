package help

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kblabs/kb/internal/manifestmodel"
	"github.com/kblabs/kb/internal/registry"
)

func TestGlobalListing_OnlyAvailableFilters(t *testing.T) {
	r := registry.New()
	r.RegisterManifest(manifestmodel.RegisteredCommand{
		Manifest:  manifestmodel.Manifest{ID: "deploy"},
		Available: true,
	})
	r.RegisterManifest(manifestmodel.RegisteredCommand{
		Manifest:          manifestmodel.Manifest{ID: "rollback"},
		Available:         false,
		UnavailableReason: "disabled",
	})

	all := GlobalListing(r, false)
	if len(all.Commands) != 2 {
		t.Fatalf("len(all.Commands) = %d, want 2", len(all.Commands))
	}

	avail := GlobalListing(r, true)
	if len(avail.Commands) != 1 || avail.Commands[0].Manifest.ID != "deploy" {
		t.Fatalf("filtered Commands = %+v, want only deploy", avail.Commands)
	}
}

func TestGlobalListing_GroupSummariesCountsAndBadge(t *testing.T) {
	r := registry.New()
	mv2 := &manifestmodel.ManifestV2{Schema: "https://kb.dev/schemas/manifest/v2"}
	r.RegisterGroup("acme", []manifestmodel.RegisteredCommand{
		{Manifest: manifestmodel.Manifest{ID: "acme:deploy", Group: "acme", ManifestV2: mv2}, Available: true},
		{Manifest: manifestmodel.Manifest{ID: "acme:rollback", Group: "acme"}, Available: true},
	})

	l := GlobalListing(r, false)
	if len(l.GroupSummaries) != 1 {
		t.Fatalf("GroupSummaries = %+v, want exactly one group", l.GroupSummaries)
	}
	g := l.GroupSummaries[0]
	if g.Name != "acme" || g.CommandCount != 2 {
		t.Fatalf("GroupSummaries[0] = %+v, want acme with 2 commands", g)
	}
	if g.VersionBadge != "v2" {
		t.Fatalf("VersionBadge = %q, want v2", g.VersionBadge)
	}
}

func TestGlobalListing_StandaloneCommandsAreTheBuiltinGroup(t *testing.T) {
	r := registry.New()
	r.Register(manifestmodel.RegisteredCommand{Manifest: manifestmodel.Manifest{ID: "hello", Group: "builtin"}})
	r.RegisterGroup("acme", []manifestmodel.RegisteredCommand{
		{Manifest: manifestmodel.Manifest{ID: "acme:deploy", Group: "acme"}, Available: true},
	})

	l := GlobalListing(r, false)
	if len(l.StandaloneCommands) != 1 || l.StandaloneCommands[0].Manifest.ID != "hello" {
		t.Fatalf("StandaloneCommands = %+v, want just [hello]", l.StandaloneCommands)
	}
	for _, g := range l.GroupSummaries {
		if g.Name == "builtin" {
			t.Fatal("GroupSummaries included the builtin group, want only product groups")
		}
	}
}

func TestGlobalListing_IncludesGlobalOptions(t *testing.T) {
	r := registry.New()
	l := GlobalListing(r, false)
	if len(l.GlobalOptions) == 0 {
		t.Fatal("GlobalOptions empty, want the fixed global-flag list")
	}
	found := false
	for _, o := range l.GlobalOptions {
		if o.Name == "--only-available" {
			found = true
		}
	}
	if !found {
		t.Fatal("GlobalOptions missing --only-available")
	}
}

func TestGlobalListing_ReflectsPartialFlag(t *testing.T) {
	r := registry.New()
	r.MarkPartial(true)
	l := GlobalListing(r, false)
	if !l.Partial {
		t.Fatal("Listing.Partial = false, want true")
	}
}

func TestWriteText_MarksUnavailableAndShadowed(t *testing.T) {
	l := Listing{
		Commands: []manifestmodel.RegisteredCommand{
			{Manifest: manifestmodel.Manifest{ID: "deploy", Describe: "deploy the app"}, Available: true, Shadowed: true},
			{Manifest: manifestmodel.Manifest{ID: "rollback"}, Available: false, UnavailableReason: "disabled"},
		},
	}
	var buf bytes.Buffer
	WriteText(&buf, l)
	out := buf.String()

	if !strings.Contains(out, "(shadowed)") {
		t.Fatalf("WriteText() output missing (shadowed): %s", out)
	}
	if !strings.Contains(out, "(unavailable: disabled)") {
		t.Fatalf("WriteText() output missing unavailable reason: %s", out)
	}
}

func TestWriteText_RendersGroupSummariesStandaloneAndOptions(t *testing.T) {
	l := Listing{
		GroupSummaries:     []GroupSummary{{Name: "acme", CommandCount: 3, VersionBadge: "v2"}},
		StandaloneCommands: []manifestmodel.RegisteredCommand{{Manifest: manifestmodel.Manifest{ID: "hello"}}},
		GlobalOptions:      []GlobalOption{{Name: "--json", Describe: "switch presenter to JSON"}},
	}
	var buf bytes.Buffer
	WriteText(&buf, l)
	out := buf.String()

	if !strings.Contains(out, "acme") || !strings.Contains(out, "v2") {
		t.Fatalf("WriteText() missing group summary: %s", out)
	}
	if !strings.Contains(out, "STANDALONE COMMANDS") || !strings.Contains(out, "hello") {
		t.Fatalf("WriteText() missing standalone commands section: %s", out)
	}
	if !strings.Contains(out, "GLOBAL OPTIONS") || !strings.Contains(out, "--json") {
		t.Fatalf("WriteText() missing global options section: %s", out)
	}
}

func TestWriteText_PartialFooter(t *testing.T) {
	var buf bytes.Buffer
	WriteText(&buf, Listing{Partial: true})
	if !strings.Contains(buf.String(), "partial") {
		t.Fatalf("WriteText() output missing partial footer: %s", buf.String())
	}
}

func TestWriteCommandText_IncludesFlagsAndExamples(t *testing.T) {
	c := CommandHelp{
		Manifest: manifestmodel.Manifest{
			ID:       "deploy",
			Describe: "deploy the app",
			Flags:    []manifestmodel.Flag{{Name: "force", Type: manifestmodel.FlagBoolean, Required: true}},
			Examples: []string{"kb deploy --force"},
		},
	}
	var buf bytes.Buffer
	WriteCommandText(&buf, c)
	out := buf.String()
	if !strings.Contains(out, "--force") || !strings.Contains(out, "required") {
		t.Fatalf("WriteCommandText() missing flag details: %s", out)
	}
	if !strings.Contains(out, "kb deploy --force") {
		t.Fatalf("WriteCommandText() missing example: %s", out)
	}
}

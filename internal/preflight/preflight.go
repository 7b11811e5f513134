// Package preflight runs the 7 ordered structural/semantic checks spec.md
// §4.D defines between Discovery and Registry entry, generalizing the
// teacher's single checkMinKcliVersion/validateManifest pair into the full
// ordered list with stable reason codes.
package preflight

import (
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/kblabs/kb/internal/errs"
	"github.com/kblabs/kb/internal/manifestmodel"
)

var knownPermissions = map[string]bool{
	"fs.read":    true,
	"fs.write":   true,
	"net.fetch":  true,
	"proc.spawn": true,
	"env.read":   true,
}

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+(:[a-zA-Z0-9_-]+)*$`)

// Verdict is the outcome of running every check on one candidate manifest.
type Verdict struct {
	Valid  bool
	Reason string
	Hint   string
}

// ok constructs a passing Verdict.
func ok() Verdict { return Verdict{Valid: true} }

func fail(reason, hint string) Verdict {
	return Verdict{Valid: false, Reason: reason, Hint: hint}
}

// Resolver reports whether a required peer package is resolvable, letting
// callers inject a real module-path lookup or a test double.
type Resolver func(pkg string) bool

// Run applies the seven checks in order, stopping at the first failure
// (spec.md §4.D: "Each failure yields a stable reason code"). hostCLIVersion
// and nodeMajor stand in for the current runtime's version identifiers;
// actualModule is the package's own declared module system (from its
// package.json), compared against the manifest's engine.module in check 5;
// resolve checks requires[] entries.
func Run(m manifestmodel.Manifest, hostCLIVersion string, nodeMajor int, actualModule manifestmodel.ModuleKind, resolve Resolver) Verdict {
	if v := checkID(m); !v.Valid {
		return v
	}
	if v := checkGroup(m); !v.Valid {
		return v
	}
	if v := checkNodeEngine(m, nodeMajor); !v.Valid {
		return v
	}
	if v := checkCLIEngine(m, hostCLIVersion); !v.Valid {
		return v
	}
	if v := checkModule(m, actualModule); !v.Valid {
		return v
	}
	if v := checkRequires(m, resolve); !v.Valid {
		return v
	}
	if v := checkPermissions(m); !v.Valid {
		return v
	}
	return ok()
}

// checkID is check 1: id present and either bare or colon-separated
// segments (<group>:<name>, or longer paths such as a:b:c).
func checkID(m manifestmodel.Manifest) Verdict {
	id := strings.TrimSpace(m.ID)
	if id == "" {
		return fail(errs.ReasonMalformedID, "manifest.id is required")
	}
	if !idPattern.MatchString(id) {
		return fail(errs.ReasonMalformedID, "manifest.id must be a bare name or colon-separated segments")
	}
	return ok()
}

// checkGroup is check 2: group non-empty and matches id's group segment
// when id is colon-form.
func checkGroup(m manifestmodel.Manifest) Verdict {
	if strings.Contains(m.ID, ":") {
		group := m.ID[:strings.Index(m.ID, ":")]
		if strings.TrimSpace(m.Group) == "" {
			return fail(errs.ReasonMalformedID, "manifest.group is required when manifest.id is colon-form")
		}
		if m.Group != group {
			return fail(errs.ReasonMalformedID, "manifest.group does not match manifest.id's group segment")
		}
	}
	return ok()
}

// checkNodeEngine is check 3: engine.node, if given as ">=X.Y.Z", satisfied
// by the current runtime's major version.
func checkNodeEngine(m manifestmodel.Manifest, nodeMajor int) Verdict {
	req := strings.TrimSpace(m.Engine.Node)
	if req == "" {
		return ok()
	}
	if !strings.HasPrefix(req, ">=") {
		return ok()
	}
	major := majorOf(strings.TrimPrefix(req, ">="))
	if major > 0 && nodeMajor < major {
		return fail(errs.ReasonNodeVersionMismatch, "requires node "+req)
	}
	return ok()
}

// checkCLIEngine is check 4: engine.kbCli, if given as "^X.Y.Z", satisfied
// by the current host version via major-version compare, grounded on the
// teacher's checkMinKcliVersion/semverLess pair.
func checkCLIEngine(m manifestmodel.Manifest, hostVersion string) Verdict {
	req := strings.TrimSpace(m.Engine.KBCli)
	if req == "" {
		return ok()
	}
	req = strings.TrimPrefix(req, "^")
	reqMajor := majorOf(req)
	hostMajor := majorOf(hostVersion)
	if reqMajor > 0 && hostMajor < reqMajor {
		return fail(errs.ReasonCLIVersionMismatch, "requires kb >= "+req+" (current: "+hostVersion+")")
	}
	return ok()
}

// checkModule is check 5: engine.module, if given, must be a valid enum
// value and must match the package's own declared module system
// (actualModule, read from its package.json "type" field); actualModule
// empty means it couldn't be determined, so the comparison is skipped.
func checkModule(m manifestmodel.Manifest, actualModule manifestmodel.ModuleKind) Verdict {
	if m.Engine.Module == "" {
		return ok()
	}
	if m.Engine.Module != manifestmodel.ModuleESM && m.Engine.Module != manifestmodel.ModuleCJS {
		return fail(errs.ReasonModuleTypeMismatch, "engine.module must be esm or cjs")
	}
	if actualModule != "" && m.Engine.Module != actualModule {
		return fail(errs.ReasonModuleTypeMismatch, "engine.module declares "+string(m.Engine.Module)+" but the package's own manifest declares "+string(actualModule))
	}
	return ok()
}

// checkRequires is check 6: required peer packages resolvable via resolve.
func checkRequires(m manifestmodel.Manifest, resolve Resolver) Verdict {
	if resolve == nil {
		return ok()
	}
	for _, req := range m.Requires {
		if !resolve(req) {
			return fail(errs.ReasonMissingPeerDep, "missing required package: "+req)
		}
	}
	return ok()
}

// checkPermissions is check 7: permissions[] names only known capabilities.
func checkPermissions(m manifestmodel.Manifest) Verdict {
	for _, p := range m.Permissions {
		if !knownPermissions[p] {
			return fail(errs.ReasonUnknownPermission, "unknown permission: "+p)
		}
	}
	return ok()
}

// majorOf extracts the leading integer component of a "X.Y.Z"-shaped
// string, returning 0 when unparsable.
func majorOf(s string) int {
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, ".", 2)
	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0
	}
	return n
}

// RuntimeNodeMajor is a placeholder mapping of this process's Go runtime
// into the "current runtime's major version" the spec's engine.node check
// reasons about, since a Go host has no Node.js of its own to report.
func RuntimeNodeMajor() int {
	_ = runtime.Version()
	return 20
}

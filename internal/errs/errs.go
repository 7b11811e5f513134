// Package errs defines the error taxonomy of spec.md §7 as sentinel errors
// so callers can use errors.Is/errors.As instead of matching on strings.
package errs

import "errors"

// Sentinel kinds. Wrap these with fmt.Errorf("...: %w", ErrX) to attach
// context while keeping errors.Is(err, ErrX) working.
var (
	ErrCmdNotFound       = errors.New("CMD_NOT_FOUND")
	ErrCmdUnavailable    = errors.New("CMD_UNAVAILABLE")
	ErrPermissionDenied  = errors.New("PERMISSION_DENIED")
	ErrManifestSkipped   = errors.New("MANIFEST_SKIPPED")
	ErrHandlerLoadFailed = errors.New("HANDLER_LOAD_FAILED")
	ErrExecutionTimeout  = errors.New("EXECUTION_TIMEOUT")
	ErrHandlerFailed     = errors.New("HANDLER_FAILED")
	ErrStateCorrupt      = errors.New("STATE_CORRUPT")
	ErrCacheCorrupt      = errors.New("CACHE_CORRUPT")
)

// Skip reason codes, distinct from the top-level taxonomy above: these are
// sub-codes of ErrManifestSkipped (spec.md §4.D/§7).
const (
	ReasonNodeVersionMismatch = "NODE_VERSION_MISMATCH"
	ReasonCLIVersionMismatch  = "CLI_VERSION_MISMATCH"
	ReasonModuleTypeMismatch  = "MODULE_TYPE_MISMATCH"
	ReasonMissingPeerDep      = "MISSING_PEER_DEP"
	ReasonUnknownPermission   = "UNKNOWN_PERMISSION"
	ReasonMalformedID         = "MALFORMED_ID"

	// Dispatcher-path reason codes (spec.md §4.F.6.d), distinct from the
	// preflight skip reasons above.
	ReasonHandlerLoad   = "HANDLER_LOAD_FAILED"
	ReasonTimeout       = "EXECUTION_TIMEOUT"
	ReasonHandlerFailed = "HANDLER_FAILED"
)

// Coded is satisfied by errors that carry a stable taxonomy code for
// structured (--json) error reporting.
type Coded interface {
	error
	Code() string
}

// codedError pairs a sentinel kind with a human message and stable code.
type codedError struct {
	kind error
	code string
	msg  string
}

func (e *codedError) Error() string { return e.msg }
func (e *codedError) Code() string  { return e.code }
func (e *codedError) Unwrap() error { return e.kind }

// New builds a Coded error wrapping one of the sentinel kinds above with a
// specific reason code and message. When no finer-grained code applies,
// pass the kind's own string as code.
func New(kind error, code, msg string) error {
	return &codedError{kind: kind, code: code, msg: msg}
}

// CodeOf extracts the stable taxonomy code from err, or "" if err does not
// implement Coded.
func CodeOf(err error) string {
	var c Coded
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

// Package terminal provides cross-platform terminal capability detection
// for the Presenter's lipgloss styling.
package terminal

import (
	"os"
	"runtime"
	"strings"
)

// ColorDisabled returns true when ANSI colors should be disabled.
// - KB_NO_COLOR or NO_COLOR env set (any value)
// - Windows without Windows Terminal (cmd.exe, older PowerShell)
//
// Windows Terminal is detected via WT_SESSION or TERM_PROGRAM=WindowsTerminal.
func ColorDisabled() bool {
	if strings.TrimSpace(os.Getenv("KB_NO_COLOR")) != "" || strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return true
	}
	if runtime.GOOS != "windows" {
		return false
	}
	wtSession := strings.TrimSpace(os.Getenv("WT_SESSION"))
	termProgram := strings.TrimSpace(os.Getenv("TERM_PROGRAM"))
	return wtSession == "" && termProgram != "WindowsTerminal"
}

// Package notify sends crash-report alerts to Slack, fired from the
// Dispatcher's crash path and from State's auto-quarantine transition
// (SPEC_FULL.md §B.6). Grounded on the teacher's own
// config.IntegrationsConfig.SlackWebhook field, which the teacher declares
// but never wires to a concrete client; this upgrades it to a real one.
package notify

import (
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// CrashReport is the subset of spec.md §4.F.6.d's structured crash report
// relevant to an external alert.
type CrashReport struct {
	CommandID     string
	Package       string
	CorrelationID string
	ErrorMessage  string
	Hint          string
}

// Notifier posts crash reports to a fixed Slack incoming webhook. A nil or
// empty webhook URL makes every call a silent no-op, so notification stays
// optional without callers needing to branch on configuration.
type Notifier struct {
	webhookURL string
	logger     *zap.SugaredLogger
}

// New constructs a Notifier. webhookURL may be empty.
func New(webhookURL string, logger *zap.SugaredLogger) *Notifier {
	return &Notifier{webhookURL: webhookURL, logger: logger}
}

// NotifyCrash posts a crash report. Failures are logged and swallowed —
// SPEC_FULL.md §B.6 is explicit that notification never blocks dispatch.
func (n *Notifier) NotifyCrash(r CrashReport) {
	if n == nil || n.webhookURL == "" {
		return
	}
	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf(":rotating_light: `%s` crashed (package: %s, correlation: %s): %s\nHint: %s",
			r.CommandID, r.Package, r.CorrelationID, r.ErrorMessage, r.Hint),
	}
	if err := slack.PostWebhook(n.webhookURL, msg); err != nil && n.logger != nil {
		n.logger.Warnw("slack crash notification failed", "error", err, "commandId", r.CommandID)
	}
}

// NotifyQuarantine posts a notice when State.RecordCrash auto-disables a
// package.
func (n *Notifier) NotifyQuarantine(pkg string, crashes int) {
	if n == nil || n.webhookURL == "" {
		return
	}
	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf(":no_entry: package `%s` auto-quarantined after %d crashes", pkg, crashes),
	}
	if err := slack.PostWebhook(n.webhookURL, msg); err != nil && n.logger != nil {
		n.logger.Warnw("slack quarantine notification failed", "error", err, "package", pkg)
	}
}

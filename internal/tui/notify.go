package tui

import "github.com/gen2brain/beeep"

const appName = "LiveScribe"

// Notifier shows desktop notifications for session notices.
type Notifier struct {
	enabled bool
	send    func(title, message, icon string) error
}

// NewNotifier creates a Notifier backed by the desktop notification service.
func NewNotifier(enabled bool) *Notifier {
	return &Notifier{enabled: enabled, send: func(title, message, icon string) error {
		return beeep.Notify(title, message, icon)
	}}
}

// SetEnabled turns notifications on or off.
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled = enabled
}

// Enabled reports whether notifications are shown.
func (n *Notifier) Enabled() bool {
	return n != nil && n.enabled
}

// Notify shows message, truncated to 100 bytes.
func (n *Notifier) Notify(level, message string) {
	if !n.Enabled() {
		return
	}
	if len(message) > 100 {
		message = message[:100] + "..."
	}
	title := appName
	if level != "" && level != "info" {
		title += ": " + level
	}
	// Notification failures are not fatal.
	_ = n.send(title, message, "")
}

package logger

import "github.com/vitwit/walletsession/types"

type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

type NoopLogger struct{}

func (NoopLogger) Debug(string, map[string]any) {}
func (NoopLogger) Info(string, map[string]any)  {}
func (NoopLogger) Warn(string, map[string]any)  {}
func (NoopLogger) Error(string, map[string]any) {}

// Notifier writes user-facing notifications to a Logger. Useful when there is
// no presentation layer, e.g. in headless runs.
type Notifier struct {
	Log Logger
}

func (n Notifier) Notify(note types.Notification) {
	fields := map[string]any{"title": note.Title}
	if note.Message != "" {
		fields["message"] = note.Message
	}
	if note.TxHash != "" {
		fields["txHash"] = note.TxHash
	}

	switch note.Level {
	case types.LevelError:
		n.Log.Error("notification", fields)
	case types.LevelWarning:
		n.Log.Warn("notification", fields)
	default:
		n.Log.Info("notification", fields)
	}
}

package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyModule     = "module"
	KeyPath       = "path"
	KeyOutput     = "output"
	KeyPlugin     = "plugin"
	KeyHook       = "hook"
	KeyImport     = "import"
	KeyEvent      = "event"
	KeyStage      = "stage"
	KeyMode       = "mode"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyURL        = "url"
	KeyStatus     = "status"
	KeyAttempt    = "attempt"
	KeyBuildID    = "build_id"
	KeyClients    = "clients"
	KeyError      = "error"
)

func Module(key string) slog.Attr   { return slog.String(KeyModule, key) }
func Path(p string) slog.Attr       { return slog.String(KeyPath, p) }
func Output(p string) slog.Attr     { return slog.String(KeyOutput, p) }
func Plugin(name string) slog.Attr  { return slog.String(KeyPlugin, name) }
func Hook(name string) slog.Attr    { return slog.String(KeyHook, name) }
func Import(spec string) slog.Attr  { return slog.String(KeyImport, spec) }
func Event(name string) slog.Attr   { return slog.String(KeyEvent, name) }
func Stage(name string) slog.Attr   { return slog.String(KeyStage, name) }
func Mode(m string) slog.Attr       { return slog.String(KeyMode, m) }
func Count(n int) slog.Attr         { return slog.Int(KeyCount, n) }
func URL(u string) slog.Attr        { return slog.String(KeyURL, u) }
func Status(code int) slog.Attr     { return slog.Int(KeyStatus, code) }
func Attempt(n int) slog.Attr       { return slog.Int(KeyAttempt, n) }
func BuildID(id string) slog.Attr   { return slog.String(KeyBuildID, id) }
func Clients(n int) slog.Attr       { return slog.Int(KeyClients, n) }

// Duration reports d in fractional milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

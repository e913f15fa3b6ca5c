package logfields

import (
	"log/slog"
	"strings"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuilder    = "builder"
	KeyStatus     = "status"
	KeyOutfile    = "outfile"
	KeyTarget     = "target"
	KeyExec       = "exec"
	KeyCommand    = "command"
	KeyExitCode   = "exit_code"
	KeyDurationMS = "duration_ms"
	KeyDocument   = "document"
	KeyPath       = "path"
	KeyRoot       = "root"
	KeyInExt      = "in_ext"
	KeyOutExt     = "out_ext"
	KeyPriority   = "priority"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Builder(name string) slog.Attr   { return slog.String(KeyBuilder, name) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func Outfile(p string) slog.Attr      { return slog.String(KeyOutfile, p) }
func Target(ext string) slog.Attr     { return slog.String(KeyTarget, ext) }
func Exec(name string) slog.Attr      { return slog.String(KeyExec, name) }
func Command(argv []string) slog.Attr { return slog.String(KeyCommand, strings.Join(argv, " ")) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Document(p string) slog.Attr     { return slog.String(KeyDocument, p) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Root(p string) slog.Attr         { return slog.String(KeyRoot, p) }
func InExt(ext string) slog.Attr      { return slog.String(KeyInExt, ext) }
func OutExt(ext string) slog.Attr     { return slog.String(KeyOutExt, ext) }
func Priority(p int) slog.Attr        { return slog.Int(KeyPriority, p) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

package errors

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	switch {
	case err == nil:
		return 0
	case IsBuildError(err):
		return 11
	case IsNotFound(err):
		return 3
	}
	if _, ok := AsClassified(err); !ok {
		return 1
	}
	return exitCodeForCategory(GetCategory(err))
}

// exitCodeForCategory maps error categories to exit codes.
func exitCodeForCategory(category ErrorCategory) int {
	switch category {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryNotFound:
		return 3
	case CategoryConfig:
		return 7 // Configuration error
	case CategoryBuild, CategoryProcess, CategoryFileSystem, CategoryDecider:
		return 11 // Build error
	case CategoryInternal:
		return 10 // Internal error
	default:
		return 1 // General error
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	if classified, ok := AsClassified(err); ok {
		return a.formatClassified(classified)
	}
	return fmt.Sprintf("Error: %v", err)
}

// formatClassified formats a ClassifiedError for display. Process failures
// always include the command line and captured stderr.
func (a *CLIErrorAdapter) formatClassified(err *ClassifiedError) string {
	var b strings.Builder
	if a.verbose || err.Category() == CategoryInternal {
		b.WriteString(err.Error())
	} else {
		fmt.Fprintf(&b, "Error: %s", err.Message())
	}

	proc := err
	if !proc.IsCategory(CategoryProcess) {
		for cause := err.Cause(); cause != nil; {
			c, ok := AsClassified(cause)
			if !ok {
				break
			}
			if c.IsCategory(CategoryProcess) {
				proc = c
				break
			}
			cause = c.Cause()
		}
	}
	if cmd, ok := proc.Context().GetString(KeyCommand); ok {
		fmt.Fprintf(&b, "\n  command: %s", cmd)
		if code, ok := proc.Context().GetInt(KeyExitCode); ok {
			fmt.Fprintf(&b, "\n  exit code: %d", code)
		}
		if stderr, ok := proc.Context().GetString(KeyStderr); ok && stderr != "" {
			fmt.Fprintf(&b, "\n  stderr:\n%s", strings.TrimRight(stderr, "\n"))
		}
		if a.verbose {
			if stdout, ok := proc.Context().GetString(KeyStdout); ok && stdout != "" {
				fmt.Fprintf(&b, "\n  stdout:\n%s", strings.TrimRight(stdout, "\n"))
			}
		}
	}
	return b.String()
}

// HandleError processes an error and exits the program with appropriate code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	exitCode := a.ExitCodeFor(err)
	message := a.FormatError(err)

	if a.shouldLog(err) {
		a.logError(err)
	}

	fmt.Fprintf(os.Stderr, "%s\n", message)
	os.Exit(exitCode)
}

// shouldLog determines if an error should be logged.
func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if classified, ok := AsClassified(err); ok {
		return classified.IsFatal()
	}
	return true
}

// logError logs an error with appropriate level and context.
func (a *CLIErrorAdapter) logError(err error) {
	if classified, ok := AsClassified(err); ok {
		level := a.slogLevelFromSeverity(classified.Severity())
		attrs := []slog.Attr{
			slog.String("category", string(classified.Category())),
		}
		a.logger.LogAttrs(context.Background(), level, classified.Message(), attrs...)
		return
	}
	a.logger.Error("Unclassified error", "error", err)
}

// slogLevelFromSeverity converts ClassifiedError severity to slog level.
func (a *CLIErrorAdapter) slogLevelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityError, SeverityFatal:
		return slog.LevelError
	default:
		return slog.LevelError
	}
}

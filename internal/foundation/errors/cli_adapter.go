package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Exit codes returned by the tails binary.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitConfig     = 7
	ExitExternal   = 8
	ExitInternal   = 10
	ExitBuild      = 11
	ExitRuntime    = 12
	ExitManifest   = 13
	ExitNotFound   = 14
)

// CLIErrorAdapter handles error presentation and exit code determination for the CLI.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		out:     os.Stderr,
		exit:    os.Exit,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	if classified, ok := AsClassified(err); ok {
		return exitCodeFromCategory(classified.Category())
	}
	return ExitGeneral
}

func exitCodeFromCategory(category ErrorCategory) int {
	switch category {
	case CategoryValidation:
		return ExitUsage
	case CategoryConfig:
		return ExitConfig
	case CategoryNetwork:
		return ExitExternal
	case CategoryModule, CategoryPlugin, CategoryFileSystem:
		return ExitBuild
	case CategoryManifest:
		return ExitManifest
	case CategoryNotFound:
		return ExitNotFound
	case CategoryWatch, CategoryRuntime:
		return ExitRuntime
	case CategoryInternal:
		return ExitInternal
	default:
		return ExitGeneral
	}
}

// FormatError formats an error for user-facing display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	classified, ok := AsClassified(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return classified.Error()
	}
	switch classified.Category() {
	case CategoryInternal:
		return "Internal error occurred (use -v for details)"
	default:
		msg := fmt.Sprintf("Error: %s", classified.Message())
		if path, ok := classified.Context().GetString("path"); ok {
			msg += " (" + path + ")"
		}
		if classified.Cause() != nil {
			msg += ": " + classified.Cause().Error()
		}
		return msg
	}
}

// HandleError processes an error and exits the program with the appropriate code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	exitCode := a.ExitCodeFor(err)
	message := a.FormatError(err)

	if a.shouldLog(err) {
		a.logError(err)
	}

	_, _ = fmt.Fprintf(a.out, "%s\n", message)
	a.exit(exitCode)
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if classified, ok := AsClassified(err); ok {
		return classified.Severity() == SeverityFatal
	}
	return true
}

func (a *CLIErrorAdapter) logError(err error) {
	if classified, ok := AsClassified(err); ok {
		level := slogLevelFromSeverity(classified.Severity())
		attrs := []slog.Attr{
			slog.String("category", string(classified.Category())),
		}
		for k, v := range classified.Context() {
			attrs = append(attrs, slog.Any(k, v))
		}
		if classified.CanRetry() {
			attrs = append(attrs, slog.Bool("retryable", true))
		}
		a.logger.LogAttrs(context.Background(), level, classified.Message(), attrs...)
		return
	}
	a.logger.Error("Unclassified error", "error", err)
}

func slogLevelFromSeverity(severity ErrorSeverity) slog.Level {
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

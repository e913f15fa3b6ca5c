package errors

import "strings"

// Context keys carried by process errors.
const (
	KeyCommand  = "command"
	KeyExitCode = "exit_code"
	KeyStdout   = "stdout"
	KeyStderr   = "stderr"
)

// ProcessError creates an error for an external tool that exited nonzero,
// timed out, or could not be started.
func ProcessError(message string, argv []string, exitCode int, stdout, stderr string) *ErrorBuilder {
	return NewError(CategoryProcess, message).
		Fatal().
		WithContext(KeyCommand, strings.Join(argv, " ")).
		WithContext(KeyExitCode, exitCode).
		WithContext(KeyStdout, stdout).
		WithContext(KeyStderr, stderr)
}

// IsBuildError reports whether err is a build or process failure.
func IsBuildError(err error) bool {
	return HasCategory(err, CategoryBuild) || HasCategory(err, CategoryProcess)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return HasCategory(err, CategoryNotFound)
}

package main

import "os"

// Exit codes for different error types.
// These enable scripts to distinguish between failure modes.
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0

	// ExitGeneral indicates a general error
	ExitGeneral = 1

	// ExitUsage indicates invalid arguments or usage error
	ExitUsage = 2

	// ExitConfig indicates a missing API key, unknown provider or
	// unusable Python interpreter
	ExitConfig = 3

	// ExitNetwork indicates a network error
	ExitNetwork = 5

	// ExitInstallFailed indicates some dependencies could not be installed
	ExitInstallFailed = 6

	// ExitUpdateFailed indicates the self-update could not be completed
	ExitUpdateFailed = 7

	// ExitPending indicates dependencies were recorded for a later retry
	ExitPending = 8
)

// exitWithCode exits with the specified exit code
func exitWithCode(code int) {
	os.Exit(code)
}

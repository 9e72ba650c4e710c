package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/tsukumogami/aigene/internal/errmsg"
)

// printInfo prints an informational message unless quiet mode is enabled
func printInfo(a ...interface{}) {
	if !quietFlag {
		fmt.Println(a...)
	}
}

// printInfof prints a formatted informational message unless quiet mode is enabled
func printInfof(format string, a ...interface{}) {
	if !quietFlag {
		fmt.Printf(format, a...)
	}
}

// printJSON marshals the given value to JSON and prints it to stdout
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		exitWithCode(ExitGeneral)
	}
}

// printError prints an error to stderr with suggestions if available.
func printError(err error, ctx *errmsg.ErrorContext) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", errmsg.Format(err, ctx))
}

// exitCodeFor maps an error to the exit code scripts can branch on.
func exitCodeFor(err error) int {
	switch errmsg.KindOf(err) {
	case errmsg.FatalConfig:
		return ExitConfig
	case errmsg.Transient:
		return ExitNetwork
	case errmsg.PartialFailure:
		return ExitInstallFailed
	}
	return ExitGeneral
}

// isTruthy reports whether an environment value means "on".
func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// interruptible returns a context that ends on Ctrl-C. While it is live
// the interrupt cancels the current operation instead of the process.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}

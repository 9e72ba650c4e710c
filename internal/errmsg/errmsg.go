// Package errmsg classifies errors and formats them with actionable
// suggestions.
package errmsg

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorContext provides additional context for error formatting.
type ErrorContext struct {
	Package  string // Python package being installed
	Provider string // chat provider in use
	EnvVar   string // environment variable holding the missing key
}

// Format returns a formatted error message with possible causes and suggestions.
// The context parameter is optional - pass nil for generic formatting.
func Format(err error, ctx *ErrorContext) string {
	if err == nil {
		return ""
	}

	errMsg := err.Error()

	if KindOf(err) == FatalConfig {
		return formatConfigError(errMsg, ctx)
	}

	if isRateLimitError(errMsg) {
		return formatRateLimitError(errMsg, ctx)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return formatNetworkError(netErr, ctx)
	}

	if isNetworkError(errMsg) {
		return formatGenericNetworkError(errMsg, ctx)
	}

	if isPermissionError(errMsg) {
		return formatPermissionError(errMsg, ctx)
	}

	return errMsg
}

func formatConfigError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	lower := strings.ToLower(errMsg)
	switch {
	case strings.Contains(lower, "python"):
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - Python 3.9 is not installed\n")
		sb.WriteString("  - The interpreter is not on PATH\n")
		sb.WriteString("  - The configured interpreter is older than 3.7\n")

		sb.WriteString("\nSuggestions:\n")
		sb.WriteString("  - Install Python 3.9 from https://www.python.org/downloads/\n")
		sb.WriteString("  - Point aigene at an interpreter: aigene config set python <command>\n")

	case strings.Contains(lower, "secret") || strings.Contains(lower, "api key"):
		sb.WriteString("\nSuggestions:\n")
		if ctx != nil && ctx.EnvVar != "" {
			sb.WriteString(fmt.Sprintf("  - Add %s=<key> to the .env file next to aigene\n", ctx.EnvVar))
		} else {
			sb.WriteString("  - Add the API key to the .env file next to aigene\n")
		}
		if ctx != nil && ctx.Provider != "" {
			sb.WriteString(fmt.Sprintf("  - Or switch provider: aigene config set provider <name> (current: %s)\n", ctx.Provider))
		}
	}

	return sb.String()
}

func formatRateLimitError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Too many requests to the API\n")
	sb.WriteString("  - Unauthenticated requests have lower limits\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Wait a few minutes before retrying\n")
	if ctx != nil && ctx.Provider == "" {
		sb.WriteString("  - Set GITHUB_TOKEN to raise the GitHub API limit\n")
	}

	return sb.String()
}

func formatNetworkError(err net.Error, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	if err.Timeout() {
		sb.WriteString("  - Request timed out\n")
		sb.WriteString("  - Slow or unstable network connection\n")
	} else {
		sb.WriteString("  - Network connectivity issue\n")
		sb.WriteString("  - DNS resolution failure\n")
	}
	sb.WriteString("  - Firewall, proxy, or VPN blocking the connection\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - If a VPN is enabled, disable it and retry\n")
	if err.Timeout() {
		sb.WriteString("  - Raise AIGENE_INSTALL_TIMEOUT or AIGENE_API_TIMEOUT\n")
	}

	return sb.String()
}

func formatGenericNetworkError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Network connectivity issue\n")
	sb.WriteString("  - DNS resolution failure\n")
	sb.WriteString("  - Service temporarily unavailable\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - If a VPN is enabled, disable it and retry\n")
	if ctx != nil && ctx.Package != "" {
		sb.WriteString(fmt.Sprintf("  - Retry later with: aigene deps retry (%s is kept in the pending list)\n", ctx.Package))
	}

	return sb.String()
}

func formatPermissionError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Insufficient permissions on the aigene directory\n")
	sb.WriteString("  - A file is in use by another program\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Close other programs using aigene's files and retry\n")
	sb.WriteString("  - Check ownership of the directory set by AIGENE_HOME\n")

	return sb.String()
}

// isRateLimitError checks if the error message indicates a rate limit
func isRateLimitError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate-limit") ||
		strings.Contains(lower, "too many requests")
}

// isNetworkError checks if the error message indicates a network issue
func isNetworkError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "network is unreachable") ||
		strings.Contains(lower, "dial tcp") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "i/o timeout")
}

// isPermissionError checks if the error message indicates a permission issue
func isPermissionError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "access is denied") ||
		strings.Contains(lower, "operation not permitted")
}

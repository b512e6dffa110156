// Package output provides JSON/Markdown output formatting and error handling.
package output

// Exit codes. Values are stable; scripts match on them.
const (
	ExitOK        = 0 // Success
	ExitUsage     = 1 // Invalid arguments or flags
	ExitNotFound  = 2 // Saved view or endpoint not found
	ExitRateLimit = 5 // Rate limited (429 or local limiter)
	ExitNetwork   = 6 // Connection/DNS/timeout error, circuit open
	ExitAPI       = 7 // Endpoint returned an error status
	ExitAmbiguous = 8 // Multiple matches for name
	ExitDecode    = 9 // Endpoint returned an unusable payload
)

// Error codes for JSON envelope.
const (
	CodeUsage     = "usage"
	CodeNotFound  = "not_found"
	CodeRateLimit = "rate_limit"
	CodeNetwork   = "network"
	CodeAPI       = "api_error"
	CodeAmbiguous = "ambiguous"
	CodeDecode    = "decode"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeUsage:
		return ExitUsage
	case CodeNotFound:
		return ExitNotFound
	case CodeRateLimit:
		return ExitRateLimit
	case CodeNetwork:
		return ExitNetwork
	case CodeAPI:
		return ExitAPI
	case CodeAmbiguous:
		return ExitAmbiguous
	case CodeDecode:
		return ExitDecode
	default:
		return ExitAPI
	}
}

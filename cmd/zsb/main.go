// Command zsb generates zero-shot benchmark data with LLMs and judges
// model answers against it.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ahrav/go-zsb/internal/domain"
)

// Exit codes for different failure modes.
const (
	ExitSuccess = 0
	ExitFailure = 1 // Backend, I/O or other runtime failure
	ExitConfig  = 2 // Configuration or precondition failure
)

func main() {
	err := execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps configuration and precondition failures to ExitConfig.
// They are never worth retrying.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case domain.IsFatalConfiguration(err), errors.Is(err, errUsage):
		return ExitConfig
	default:
		return ExitFailure
	}
}

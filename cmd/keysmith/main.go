package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess   = 0 // Every run finished and was saved
	ExitRunFailed = 1 // One or more runs failed
	ExitError     = 2 // Configuration or runtime error
)

// RunFailureError indicates that the batch ran, but one or more of its
// runs failed.
type RunFailureError struct {
	Failed int
	Total  int
}

func (e *RunFailureError) Error() string {
	return fmt.Sprintf("%d of %d run(s) failed", e.Failed, e.Total)
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var runFailureErr *RunFailureError
	if errors.As(err, &runFailureErr) {
		return ExitRunFailed
	}
	// All other errors are configuration/runtime errors
	return ExitError
}

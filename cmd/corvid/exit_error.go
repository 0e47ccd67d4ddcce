// SPDX-License-Identifier: MPL-2.0

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvidvm/corvid/internal/config"
	"github.com/corvidvm/corvid/internal/issue"
	"github.com/corvidvm/corvid/pkg/types"
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code types.ExitCode
	Err  error
	// Verbose includes the full error chain in Error.
	Verbose bool
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return formatErrorForDisplay(e.Err, e.Verbose)
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// exitCodeFor maps a failure to the process exit status.
func exitCodeFor(err error) types.ExitCode {
	if errors.Is(err, config.ErrInvalidOptions) {
		return types.ExitConfig
	}
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		switch ae.Issue {
		case issue.ConfigLoadFailedId, issue.InvalidOptionId:
			return types.ExitConfig
		case issue.ContextConstructionFailedId, issue.CoreLibraryNotFoundId, issue.InstrumentationServerFailedId:
			return types.ExitSoftware
		}
	}
	return types.ExitFailure
}

// fail wraps err for the exit path. In verbose mode the catalog entry
// linked to err is rendered to the command's error stream first.
func (f *rootFlags) fail(cmd *cobra.Command, err error) error {
	if f.verbose {
		var ae *issue.ActionableError
		if errors.As(err, &ae) {
			if entry := ae.CatalogIssue(); entry != nil {
				if rendered, rerr := entry.Render(""); rerr == nil {
					fmt.Fprint(cmd.ErrOrStderr(), rendered)
				}
			}
		}
	}
	return &ExitError{Code: exitCodeFor(err), Err: err, Verbose: f.verbose}
}

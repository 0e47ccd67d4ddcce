// SPDX-License-Identifier: MPL-2.0

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvidvm/corvid/internal/config"
	"github.com/corvidvm/corvid/internal/issue"
)

var errHomeUndetermined = errors.New("home directory is undetermined")

func newHomeCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "home",
		Short: "Print the resolved runtime home directory",
		Long: `Print the runtime home and the source it was resolved from: the home
option, CORVID_HOME, the corvid.home property, or the layout around the
corvid binary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := flags.envOrFail(cmd)
			if err != nil {
				return err
			}
			_, home, err := config.Resolve(env)
			if err != nil {
				return flags.fail(cmd, err)
			}
			if !home.IsDetermined() {
				return flags.fail(cmd, issue.NewErrorContext().
					WithOperation("resolve home").
					WithSuggestion("Set CORVID_HOME or pass -D "+config.HomeProperty+"=<dir>").
					WithIssue(issue.HomeNotFoundId).
					Wrap(errHomeUndetermined).
					BuildError())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", home.Path, home.Source)
			return nil
		},
	}
}

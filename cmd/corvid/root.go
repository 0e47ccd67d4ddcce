// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/corvidvm/corvid/internal/vmctx"
	"github.com/corvidvm/corvid/pkg/types"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	verbose        bool
	optionsFile    string
	propertiesFile string
	defines        []string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "corvid",
		Short: "Boot and inspect corvid runtime contexts",
		Long: TitleStyle.Render("corvid") + SubtitleStyle.Render(" - runtime context orchestrator") + `

corvid constructs a runtime context the way an embedding host would:
options are resolved, the home directory is located, every subsystem is
built in dependency order, and the context is shut down again.

` + SubtitleStyle.Render("Option sources, lowest to highest priority:") + `
  1. Process properties (--properties file, -D corvid.<key>=<value>)
  2. Environment variables (CORVID_<KEY>)
  3. Options file (--options file.cue)

` + SubtitleStyle.Render("Examples:") + `
  corvid boot                          Construct a context and shut it down
  corvid boot --wait -D corvid.instrumentation_server.port=7070
  corvid home                          Show the resolved home directory
  corvid options --format json         Show every option and its source`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging and full error chains")
	root.PersistentFlags().StringVar(&flags.optionsFile, "options", "", "CUE options file (highest priority)")
	root.PersistentFlags().StringVar(&flags.propertiesFile, "properties", "", "process properties file")
	root.PersistentFlags().StringArrayVarP(&flags.defines, "define", "D", nil, "set a process property (key=value)")

	root.AddCommand(newBootCommand(flags))
	root.AddCommand(newHomeCommand(flags))
	root.AddCommand(newOptionsCommand(flags))
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

func execute(ctx context.Context) types.ExitCode {
	vmctx.Version = Version
	if err := fang.Execute(
		ctx,
		newRootCommand(),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		return types.ExitFailure
	}
	return types.ExitSuccess
}

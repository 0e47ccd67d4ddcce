// SPDX-License-Identifier: MPL-2.0

package main

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/corvidvm/corvid/internal/config"
	"github.com/corvidvm/corvid/pkg/types"
)

type optionsReport struct {
	Options *config.Options          `json:"options" toml:"options"`
	Sources map[string]config.Source `json:"sources" toml:"sources"`
	Home    homeReport               `json:"home" toml:"home"`
}

type homeReport struct {
	Path   string        `json:"path" toml:"path"`
	Source config.Source `json:"source" toml:"source"`
}

func newOptionsCommand(flags *rootFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Print the resolved options and where each came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := flags.envOrFail(cmd)
			if err != nil {
				return err
			}
			opts, home, err := config.Resolve(env)
			if err != nil {
				return flags.fail(cmd, err)
			}
			report := optionsReport{
				Options: opts,
				Sources: opts.Sources(),
				Home:    homeReport{Path: home.Path.String(), Source: home.Source},
			}

			var out []byte
			switch format {
			case "toml":
				out, err = toml.Marshal(report)
			case "json":
				out, err = json.MarshalIndent(report, "", "  ")
				out = append(out, '\n')
			default:
				return &ExitError{Code: types.ExitUsage, Err: fmt.Errorf("unknown format %q (want toml or json)", format)}
			}
			if err != nil {
				return flags.fail(cmd, err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "toml", "output format: toml or json")
	return cmd
}

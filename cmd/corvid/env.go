// SPDX-License-Identifier: MPL-2.0

package main

import (
	"errors"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/corvidvm/corvid/internal/config"
	"github.com/corvidvm/corvid/pkg/embed"
	"github.com/corvidvm/corvid/pkg/types"
)

// env builds the embedding handle from the command line. The process
// environment and executable are used as they are.
func (f *rootFlags) env(cmd *cobra.Command) (*embed.Env, error) {
	env := &embed.Env{
		Stdin:  cmd.InOrStdin(),
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	}

	if f.optionsFile != "" {
		cfg, err := config.LoadOptionsFile(f.optionsFile)
		if err != nil {
			return nil, err
		}
		env.Config = cfg
	}

	var fromFile map[string]string
	if f.propertiesFile != "" {
		props, err := config.LoadPropertiesFile(f.propertiesFile)
		if err != nil {
			return nil, err
		}
		fromFile = props
	}
	defined, err := config.ParsePropertyFlags(f.defines)
	if err != nil {
		return nil, &ExitError{Code: types.ExitUsage, Err: err}
	}
	env.Properties = config.MergeProperties(fromFile, defined)

	if f.verbose {
		env.Logger = log.NewWithOptions(env.Stderr, log.Options{
			Prefix:          "corvid",
			Level:           log.DebugLevel,
			ReportTimestamp: true,
		})
	}
	return env, nil
}

// envOrFail is env with failures mapped to exit errors.
func (f *rootFlags) envOrFail(cmd *cobra.Command) (*embed.Env, error) {
	env, err := f.env(cmd)
	if err == nil {
		return env, nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return nil, err
	}
	return nil, f.fail(cmd, err)
}

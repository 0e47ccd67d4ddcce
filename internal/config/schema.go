// SPDX-License-Identifier: MPL-2.0

package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/corvidvm/corvid/internal/issue"
)

// maxOptionsFileSize bounds options files read from disk.
const maxOptionsFileSize = 1 << 20

//go:embed options_schema.cue
var optionsSchema string

// LoadOptionsFile reads a CUE options file, validates it against #Options
// and returns it as an embedding-config map.
func LoadOptionsFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, optionsFileError(path, err)
	}
	if len(data) > maxOptionsFileSize {
		return nil, optionsFileError(path, fmt.Errorf("file size %d bytes exceeds maximum %d bytes", len(data), maxOptionsFileSize))
	}
	m, err := ParseOptions(data, path)
	if err != nil {
		return nil, optionsFileError(path, err)
	}
	return m, nil
}

// ParseOptions validates CUE source against #Options. Fields are optional,
// so only concrete values present in the document are returned.
func ParseOptions(data []byte, filename string) (map[string]any, error) {
	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(optionsSchema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile options schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(filename))
	if userValue.Err() != nil {
		return nil, formatCUEError(userValue.Err(), filename)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Options"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return nil, formatCUEError(err, filename)
	}

	var m map[string]any
	if err := unified.Decode(&m); err != nil {
		return nil, formatCUEError(err, filename)
	}
	return m, nil
}

// formatCUEError prefixes each CUE error with its dotted field path.
func formatCUEError(err error, filename string) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("%s: %w", filename, err)
	}

	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Error()
		if path := strings.Join(cueerrors.Path(e), "."); path != "" && !strings.HasPrefix(msg, path) {
			msg = path + ": " + msg
		}
		lines = append(lines, msg)
	}
	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", filename, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", filename, strings.Join(lines, "\n  "))
}

func optionsFileError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load options file").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Compare its keys with 'corvid options'").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(err).
		BuildError()
}

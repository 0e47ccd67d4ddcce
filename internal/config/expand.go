// SPDX-License-Identifier: MPL-2.0

package config

import (
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/shell"

	"github.com/corvidvm/corvid/pkg/types"
)

// expandPath expands $VAR, ${VAR} and a leading ~ in a path-valued option
// against the injected environment, never the live process environment.
func expandPath(p types.FilesystemPath, environ map[string]string) (types.FilesystemPath, error) {
	s := string(p)
	if s == "" {
		return p, nil
	}

	if s == "~" || strings.HasPrefix(s, "~/") {
		if home := environ["HOME"]; home != "" {
			s = filepath.Join(home, strings.TrimPrefix(s, "~"))
		}
	}

	if !strings.ContainsRune(s, '$') {
		return types.FilesystemPath(s), nil
	}

	expanded, err := shell.Expand(s, func(name string) string {
		return environ[name]
	})
	if err != nil {
		return p, err
	}
	return types.FilesystemPath(expanded), nil
}

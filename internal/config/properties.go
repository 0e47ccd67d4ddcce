// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"maps"
	"strings"

	"github.com/magiconair/properties"

	"github.com/corvidvm/corvid/internal/issue"
)

// LoadPropertiesFile reads a Java-style properties file into a flat map.
func LoadPropertiesFile(path string) (map[string]string, error) {
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load properties file").
			WithResource(path).
			WithSuggestion("Check that the file exists and uses key=value lines").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}
	return p.Map(), nil
}

// ParsePropertyFlags parses -D style "key=value" definitions. A bare "key"
// defines an empty value.
func ParsePropertyFlags(defs []string) (map[string]string, error) {
	out := make(map[string]string, len(defs))
	for _, def := range defs {
		key, value, _ := strings.Cut(def, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("property definition %q has no key", def)
		}
		out[key] = value
	}
	return out, nil
}

// MergeProperties returns base overlaid with each overlay in turn.
func MergeProperties(base map[string]string, overlays ...map[string]string) map[string]string {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]string)
	}
	for _, o := range overlays {
		maps.Copy(out, o)
	}
	return out
}

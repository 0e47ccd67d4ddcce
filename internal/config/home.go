// SPDX-License-Identifier: MPL-2.0

package config

import (
	"os"
	"path/filepath"

	"github.com/corvidvm/corvid/pkg/embed"
	"github.com/corvidvm/corvid/pkg/types"
)

type (
	// Home is the resolved runtime installation root. An empty Path is the
	// undetermined state; it is not an error.
	Home struct {
		Path   types.FilesystemPath
		Source Source
	}

	// HomeLocator derives a home from the location of the running binary.
	// Locate must not fail loudly: an unrecognized layout reports false.
	HomeLocator interface {
		Locate(executable string) (string, bool)
		Source() Source
	}

	// DistributionLocator recognizes a self-contained distribution: a lib
	// directory next to the binary, or next to the bin directory holding it.
	DistributionLocator struct {
		LibDir string
	}

	// BuildTreeLocator recognizes a development checkout where the binary is
	// built into <root>/<BuildDir>/<DistsDir> and the runtime home is
	// assembled at <root>/<BuildDir>/<HomeDir>.
	BuildTreeLocator struct {
		BuildDir string
		DistsDir string
		HomeDir  string
	}
)

// DefaultLocators returns the stock layout heuristics, distribution first.
func DefaultLocators() []HomeLocator {
	return []HomeLocator{
		DistributionLocator{LibDir: "lib"},
		BuildTreeLocator{BuildDir: "build", DistsDir: "dists", HomeDir: "corvid-home"},
	}
}

// IsDetermined reports whether a home was found.
func (h Home) IsDetermined() bool { return h.Path.IsSet() }

func (h Home) String() string {
	if !h.IsDetermined() {
		return "<undetermined>"
	}
	return h.Path.String()
}

// LibDir returns <home>/lib, or "" for an undetermined home.
func (h Home) LibDir() string {
	if !h.IsDetermined() {
		return ""
	}
	return filepath.Join(string(h.Path), "lib")
}

// ResolveHome applies the priority chain: the home option (already merged
// from embedding config, CORVID_HOME and corvid.home in that order), then,
// unless running ahead-of-time compiled, the layout locators.
func (r *Resolver) ResolveHome(opts *Options, env *embed.Env) Home {
	if opts.Home.IsSet() {
		return Home{Path: opts.Home, Source: opts.SourceOf(KeyHome)}
	}
	if env.AOT {
		return Home{Source: SourceNone}
	}

	exe, err := env.ExecutablePath()
	if err != nil || exe == "" {
		return Home{Source: SourceNone}
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	for _, locator := range r.Locators {
		if path, ok := locator.Locate(exe); ok {
			return Home{Path: types.FilesystemPath(path), Source: locator.Source()}
		}
	}
	return Home{Source: SourceNone}
}

func (l DistributionLocator) Source() Source { return SourceDistribution }

func (l DistributionLocator) Locate(executable string) (string, bool) {
	dir := filepath.Dir(executable)
	if isDir(filepath.Join(dir, l.LibDir)) {
		return dir, true
	}
	if filepath.Base(dir) == "bin" {
		parent := filepath.Dir(dir)
		if isDir(filepath.Join(parent, l.LibDir)) {
			return parent, true
		}
	}
	return "", false
}

func (l BuildTreeLocator) Source() Source { return SourceBuildTree }

func (l BuildTreeLocator) Locate(executable string) (string, bool) {
	dists := filepath.Dir(executable)
	if filepath.Base(dists) != l.DistsDir {
		return "", false
	}
	build := filepath.Dir(dists)
	if filepath.Base(build) != l.BuildDir {
		return "", false
	}
	home := filepath.Join(build, l.HomeDir)
	if !isDir(home) {
		return "", false
	}
	return home, true
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// SPDX-License-Identifier: MPL-2.0

package corelib

import (
	"bufio"
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/corvidvm/corvid/internal/issue"
	embedapi "github.com/corvidvm/corvid/pkg/embed"
)

// ManifestName lists the core sources in evaluation order, one per line;
// blank lines and lines starting with '#' are ignored.
const ManifestName = "manifest.txt"

//go:embed core
var builtinCore embed.FS

// ErrCoreLibraryNotFound is returned when a configured core directory has no manifest.
var ErrCoreLibraryNotFound = errors.New("core library not found")

type (
	// SourceLoader reads the guest-language part of the core library.
	SourceLoader interface {
		// Origin describes where sources come from, for diagnostics.
		Origin() string
		Manifest() ([]string, error)
		Load(name string) (embedapi.Source, error)
	}

	// FSLoader loads sources from a filesystem rooted at the core directory.
	FSLoader struct {
		FS fs.FS
		// Dir is the on-disk directory backing FS, empty for embedded sources.
		Dir    string
		origin string
	}
)

// DirLoader loads sources from dir.
func DirLoader(dir string) *FSLoader {
	return &FSLoader{FS: os.DirFS(dir), Dir: dir, origin: dir}
}

// BuiltinLoader loads the core library compiled into the binary.
func BuiltinLoader() *FSLoader {
	sub, err := fs.Sub(builtinCore, "core")
	if err != nil {
		panic(err)
	}
	return &FSLoader{FS: sub, origin: "<builtin>"}
}

func (f *FSLoader) Origin() string { return f.origin }

func (f *FSLoader) Manifest() ([]string, error) {
	data, err := fs.ReadFile(f.FS, ManifestName)
	if err != nil {
		return nil, fmt.Errorf("read core manifest from %s: %w", f.origin, err)
	}
	var names []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, sc.Err()
}

func (f *FSLoader) Load(name string) (embedapi.Source, error) {
	clean := path.Clean(name)
	if !fs.ValidPath(clean) {
		return embedapi.Source{}, fmt.Errorf("invalid core source name %q", name)
	}
	content, err := fs.ReadFile(f.FS, clean)
	if err != nil {
		return embedapi.Source{}, fmt.Errorf("load core source %s: %w", name, err)
	}
	src := embedapi.Source{Name: clean, Content: content}
	if f.Dir != "" {
		src.Path = filepath.Join(f.Dir, filepath.FromSlash(clean))
	}
	return src, nil
}

// SelectLoader picks the core library: an explicit load path must contain a
// manifest; otherwise <home>/lib/core is used when present, and the
// built-in core is the fallback.
func SelectLoader(loadPath, home string) (SourceLoader, error) {
	if loadPath != "" {
		if !hasManifest(loadPath) {
			return nil, issue.NewErrorContext().
				WithOperation("load core library").
				WithResource(loadPath).
				WithSuggestion("Point core.load_path at a directory containing " + ManifestName).
				WithSuggestion("Unset core.load_path to use the core library bundled with corvid").
				WithIssue(issue.CoreLibraryNotFoundId).
				Wrap(ErrCoreLibraryNotFound).
				BuildError()
		}
		return DirLoader(loadPath), nil
	}
	if home != "" {
		dir := filepath.Join(home, "lib", "core")
		if hasManifest(dir) {
			return DirLoader(dir), nil
		}
	}
	return BuiltinLoader(), nil
}

func hasManifest(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ManifestName))
	return err == nil && info.Mode().IsRegular()
}

// LoadCore evaluates every source listed in the loader's manifest. Without
// an evaluator sources are only read. It returns the number of sources.
func (l *Library) LoadCore(ctx context.Context, loader SourceLoader, evaluator embedapi.Evaluator) (int, error) {
	l.mu.RLock()
	err := l.require(stepCoreLoaded, stepBuiltins)
	l.mu.RUnlock()
	if err != nil {
		return 0, err
	}

	names, err := loader.Manifest()
	if err != nil {
		return 0, err
	}
	loaded := make([]string, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return len(loaded), err
		}
		src, err := loader.Load(name)
		if err != nil {
			return len(loaded), err
		}
		if evaluator != nil {
			if err := evaluator.Eval(ctx, src); err != nil {
				return len(loaded), fmt.Errorf("evaluate core source %s: %w", name, err)
			}
		}
		loaded = append(loaded, name)
	}

	l.mu.Lock()
	l.loadedSources = loaded
	l.advance(stepCoreLoaded)
	l.mu.Unlock()
	l.logger.Debug("core library loaded", "origin", loader.Origin(), "sources", len(loaded))
	return len(loaded), nil
}

// InitializePostBoot defines the runtime constants on Object. home may be
// empty when undetermined, in which case CORVID_HOME is nil.
func (l *Library) InitializePostBoot(home, version string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.require(stepPostBoot, stepCoreLoaded); err != nil {
		return err
	}

	var homeValue any
	if home != "" {
		homeValue = home
	}
	l.objectClass.SetConstant("CORVID_HOME", homeValue)
	l.objectClass.SetConstant("CORVID_VERSION", version)
	l.objectClass.SetConstant("CORVID_ENGINE", "corvid")
	l.advance(stepPostBoot)
	return nil
}

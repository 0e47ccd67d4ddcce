// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"strings"
	"testing"
)

// Distribution lays out a self-contained distribution under a temp dir and
// returns its root and the path of its (empty) binary.
//
//	<root>/bin/corvid
//	<root>/lib/core/manifest.txt
//	<root>/lib/core/<source>...
func Distribution(t testing.TB, coreSources ...string) (root, executable string) {
	t.Helper()
	root = t.TempDir()
	executable = filepath.Join(root, "bin", "corvid")
	MustWriteFile(t, executable, "")
	CoreDir(t, filepath.Join(root, "lib", "core"), coreSources...)
	return root, executable
}

// BuildTree lays out a development checkout and returns the assembled home
// and the path of the built binary.
//
//	<root>/build/dists/corvid
//	<root>/build/corvid-home/lib/core/...
func BuildTree(t testing.TB) (home, executable string) {
	t.Helper()
	root := t.TempDir()
	executable = filepath.Join(root, "build", "dists", "corvid")
	MustWriteFile(t, executable, "")
	home = filepath.Join(root, "build", "corvid-home")
	CoreDir(t, filepath.Join(home, "lib", "core"), "kernel.cv")
	return home, executable
}

// CoreDir writes a core library directory listing sources in its manifest.
func CoreDir(t testing.TB, dir string, sources ...string) {
	t.Helper()
	MustWriteFile(t, filepath.Join(dir, "manifest.txt"), strings.Join(sources, "\n")+"\n")
	for _, s := range sources {
		MustWriteFile(t, filepath.Join(dir, s), "# "+s+"\n")
	}
}

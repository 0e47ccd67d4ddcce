// SPDX-License-Identifier: MPL-2.0

package native

const (
	SandboxNone    SandboxType = ""
	SandboxFlatpak SandboxType = "flatpak"
	SandboxSnap    SandboxType = "snap"
)

// SandboxType identifies the application sandbox the runtime runs in, if any.
type SandboxType string

// detectSandbox checks /.flatpak-info first, then SNAP_NAME.
func detectSandbox(environ map[string]string, stat func(string) error) SandboxType {
	if err := stat("/.flatpak-info"); err == nil {
		return SandboxFlatpak
	}
	if environ["SNAP_NAME"] != "" {
		return SandboxSnap
	}
	return SandboxNone
}

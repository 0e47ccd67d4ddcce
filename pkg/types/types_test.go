// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"testing"
)

func TestListenPort_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		port    ListenPort
		wantErr bool
	}{
		{0, false},
		{1, false},
		{8080, false},
		{65535, false},
		{-1, true},
		{65536, true},
	}

	for _, tt := range tests {
		t.Run(tt.port.String(), func(t *testing.T) {
			t.Parallel()
			err := tt.port.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ListenPort(%d).Validate() error = %v, wantErr %v", tt.port, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidListenPort) {
					t.Errorf("error should wrap ErrInvalidListenPort, got: %v", err)
				}
				var lpErr *InvalidListenPortError
				if !errors.As(err, &lpErr) {
					t.Errorf("error should be *InvalidListenPortError, got: %T", err)
				}
			}
		})
	}
}

func TestListenPort_Addr(t *testing.T) {
	t.Parallel()

	if got := ListenPort(9000).Addr("127.0.0.1"); got != "127.0.0.1:9000" {
		t.Errorf("Addr() = %q, want %q", got, "127.0.0.1:9000")
	}
	if !ListenPort(0).IsDisabled() {
		t.Error("zero port should be disabled")
	}
}

func TestFilesystemPath_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    FilesystemPath
		wantErr bool
	}{
		{"unset", "", false},
		{"absolute", "/opt/corvid", false},
		{"relative", "callgraph.txt", false},
		{"with spaces", "/path/to/my file.txt", false},
		{"whitespace only", "   ", true},
		{"tab only", "\t", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.path.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("FilesystemPath(%q).Validate() error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidFilesystemPath) {
				t.Errorf("error should wrap ErrInvalidFilesystemPath, got: %v", err)
			}
		})
	}
}

func TestExitCode_Validate(t *testing.T) {
	t.Parallel()

	for _, c := range []ExitCode{ExitSuccess, ExitFailure, ExitUsage, ExitSoftware, ExitConfig, 255} {
		if err := c.Validate(); err != nil {
			t.Errorf("ExitCode(%d).Validate() = %v, want nil", c, err)
		}
	}
	for _, c := range []ExitCode{-1, 256} {
		err := c.Validate()
		if !errors.Is(err, ErrInvalidExitCode) {
			t.Errorf("ExitCode(%d).Validate() = %v, want ErrInvalidExitCode", c, err)
		}
	}
	if !ExitSuccess.IsSuccess() || ExitFailure.IsSuccess() {
		t.Error("IsSuccess() mismatch")
	}
}

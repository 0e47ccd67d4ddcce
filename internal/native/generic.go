// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package native

import (
	"os"
	"runtime"

	"github.com/corvidvm/corvid/internal/object"
)

type genericPlatform struct {
	base
}

func newPlatform(b base) Platform {
	return &genericPlatform{base: b}
}

func setHandle(p Platform, h *object.Object) {
	p.(*genericPlatform).handle = h
}

func (p *genericPlatform) Kind() string { return "generic" }

func (p *genericPlatform) Pid() int { return os.Getpid() }

func (p *genericPlatform) Ppid() int { return os.Getppid() }

func (p *genericPlatform) Uname() (Uname, error) {
	host, _ := os.Hostname()
	return Uname{Sysname: runtime.GOOS, Nodename: host, Machine: runtime.GOARCH}, nil
}

func (p *genericPlatform) Getcwd() (string, error) { return os.Getwd() }

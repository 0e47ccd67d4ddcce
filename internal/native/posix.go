// SPDX-License-Identifier: MPL-2.0

//go:build unix

package native

import (
	"golang.org/x/sys/unix"

	"github.com/corvidvm/corvid/internal/object"
)

type posixPlatform struct {
	base
}

func newPlatform(b base) Platform {
	return &posixPlatform{base: b}
}

func setHandle(p Platform, h *object.Object) {
	p.(*posixPlatform).handle = h
}

func (p *posixPlatform) Kind() string { return "posix" }

func (p *posixPlatform) Pid() int { return unix.Getpid() }

func (p *posixPlatform) Ppid() int { return unix.Getppid() }

func (p *posixPlatform) Uname() (Uname, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return Uname{}, err
	}
	return Uname{
		Sysname:  unix.ByteSliceToString(uts.Sysname[:]),
		Nodename: unix.ByteSliceToString(uts.Nodename[:]),
		Release:  unix.ByteSliceToString(uts.Release[:]),
		Machine:  unix.ByteSliceToString(uts.Machine[:]),
	}, nil
}

func (p *posixPlatform) Getcwd() (string, error) { return unix.Getwd() }

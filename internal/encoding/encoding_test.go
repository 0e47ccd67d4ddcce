// SPDX-License-Identifier: MPL-2.0

package encoding

import (
	"errors"
	"testing"
)

type locale string

func (l locale) LocaleCharset() string { return string(l) }

func TestNewManager_DefaultExternal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		locale LocaleProvider
		want   string
	}{
		{"no locale", nil, UTF8},
		{"utf-8", locale("UTF-8"), UTF8},
		{"glibc utf8 spelling", locale("utf8"), UTF8},
		{"C locale", locale("ANSI_X3.4-1968"), ASCII},
		{"latin1", locale("ISO-8859-1"), "ISO-8859-1"},
		{"unknown", locale("klingon"), UTF8},
		{"empty", locale(""), UTF8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := NewManager(tt.locale)
			if err != nil {
				t.Fatalf("NewManager() error: %v", err)
			}
			if got := m.DefaultExternal().Name; got != tt.want {
				t.Errorf("DefaultExternal() = %s, want %s", got, tt.want)
			}
			if m.DefaultInternal() != nil {
				t.Error("DefaultInternal() should start nil")
			}
		})
	}
}

func TestManager_Find(t *testing.T) {
	t.Parallel()

	m, err := NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}

	bin, err := m.Find("binary")
	if err != nil || bin.Name != Binary {
		t.Errorf("Find(binary) = %v, %v", bin, err)
	}
	if cp, _ := m.Find("cp1252"); cp == nil || cp.Name != "Windows-1252" {
		t.Errorf("Find(cp1252) = %v", cp)
	}

	before := len(m.List())
	koi, err := m.Find("KOI8-R")
	if err != nil {
		t.Fatalf("Find(KOI8-R) error: %v", err)
	}
	again, _ := m.Find("koi8-r")
	if again != koi || len(m.List()) != before+1 {
		t.Error("IANA encodings should be registered once on first use")
	}

	if _, err := m.Find("no-such-charset"); !errors.Is(err, ErrUnknownEncoding) {
		t.Errorf("Find(unknown) error = %v", err)
	}
}

func TestEncoding_DecodeEncode(t *testing.T) {
	t.Parallel()

	m, err := NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	latin1, err := m.Find("ISO-8859-1")
	if err != nil {
		t.Fatal(err)
	}

	s, err := latin1.Decode([]byte{0x63, 0x61, 0x66, 0xE9})
	if err != nil || s != "café" {
		t.Errorf("Decode() = %q, %v", s, err)
	}
	b, err := latin1.Encode("café")
	if err != nil || len(b) != 4 || b[3] != 0xE9 {
		t.Errorf("Encode() = %v, %v", b, err)
	}

	bin, _ := m.Find(Binary)
	if s, _ := bin.Decode([]byte{0xff}); s != "\xff" {
		t.Errorf("binary Decode() altered data: %q", s)
	}
}

func TestManager_SetDefaults(t *testing.T) {
	t.Parallel()

	m, err := NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SetDefaultInternal("UTF-16LE"); err != nil {
		t.Fatal(err)
	}
	if m.DefaultInternal().Name != "UTF-16LE" {
		t.Errorf("DefaultInternal() = %v", m.DefaultInternal())
	}
	if err := m.SetDefaultInternal(""); err != nil || m.DefaultInternal() != nil {
		t.Error("SetDefaultInternal(\"\") should clear the default")
	}
	if err := m.SetDefaultExternal("nope"); err == nil {
		t.Error("SetDefaultExternal() accepted an unknown name")
	}
}

func TestEncoding_ConstantName(t *testing.T) {
	t.Parallel()

	e := &Encoding{Name: "ISO-8859-1"}
	if got := e.ConstantName(); got != "ISO_8859_1" {
		t.Errorf("ConstantName() = %q", got)
	}
}

// SPDX-License-Identifier: MPL-2.0

// Package encoding is the runtime's character-encoding registry.
//
// Encodings are backed by the IANA index of golang.org/x/text. The default
// external encoding is derived from the platform locale, which is why the
// registry can only be created once the native platform is available.
package encoding

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

const (
	UTF8   = "UTF-8"
	ASCII  = "US-ASCII"
	Binary = "ASCII-8BIT"
)

// ErrUnknownEncoding is returned for names neither registered nor known to IANA.
var ErrUnknownEncoding = errors.New("unknown encoding")

type (
	// Encoding is one registered character encoding.
	Encoding struct {
		Name    string
		Aliases []string
		codec   xencoding.Encoding
	}

	// LocaleProvider reports the platform locale's charset.
	LocaleProvider interface {
		LocaleCharset() string
	}

	// UnknownEncodingError wraps ErrUnknownEncoding.
	UnknownEncodingError struct {
		Name string
	}

	// Manager is safe for concurrent use.
	Manager struct {
		mu              sync.RWMutex
		byName          map[string]*Encoding
		list            []*Encoding
		defaultExternal *Encoding
		defaultInternal *Encoding
	}
)

var builtin = []struct {
	name    string
	aliases []string
}{
	{UTF8, []string{"CP65001"}},
	{ASCII, []string{"ASCII", "ANSI_X3.4-1968", "646"}},
	{Binary, []string{"BINARY"}},
	{"ISO-8859-1", []string{"ISO8859-1"}},
	{"UTF-16LE", nil},
	{"UTF-16BE", nil},
	{"Shift_JIS", []string{"SJIS"}},
	{"EUC-JP", []string{"eucJP"}},
	{"Windows-1252", []string{"CP1252"}},
}

func (e *UnknownEncodingError) Error() string {
	return fmt.Sprintf("unknown encoding %q", e.Name)
}

func (e *UnknownEncodingError) Unwrap() error { return ErrUnknownEncoding }

// NewManager registers the built-in encodings and picks the default external
// encoding from the locale, falling back to UTF-8.
func NewManager(locale LocaleProvider) (*Manager, error) {
	m := &Manager{byName: make(map[string]*Encoding)}
	for _, b := range builtin {
		var codec xencoding.Encoding
		if b.name != Binary {
			c, err := ianaindex.IANA.Encoding(b.name)
			if err != nil {
				return nil, fmt.Errorf("encoding %s: %w", b.name, err)
			}
			codec = c
		}
		m.register(&Encoding{Name: b.name, Aliases: b.aliases, codec: codec})
	}

	m.defaultExternal = m.byName[normalize(UTF8)]
	if locale != nil {
		if enc, err := m.Find(locale.LocaleCharset()); err == nil {
			m.defaultExternal = enc
		}
	}
	return m, nil
}

// register must be called with m.mu held or before m is shared.
func (m *Manager) register(enc *Encoding) {
	m.list = append(m.list, enc)
	m.byName[normalize(enc.Name)] = enc
	for _, a := range enc.Aliases {
		m.byName[normalize(a)] = enc
	}
}

// Find resolves a name or alias case-insensitively. Names known to IANA but
// not yet registered are registered on first use.
func (m *Manager) Find(name string) (*Encoding, error) {
	key := normalize(name)
	if key == "" {
		return nil, &UnknownEncodingError{Name: name}
	}

	m.mu.RLock()
	enc, ok := m.byName[key]
	m.mu.RUnlock()
	if ok {
		return enc, nil
	}
	if key == "UTF8" {
		return m.Find(UTF8)
	}

	codec, err := ianaindex.IANA.Encoding(name)
	if err != nil || codec == nil {
		return nil, &UnknownEncodingError{Name: name}
	}
	canonical, err := ianaindex.IANA.Name(codec)
	if err != nil {
		canonical = name
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if enc, ok := m.byName[normalize(canonical)]; ok {
		m.byName[key] = enc
		return enc, nil
	}
	enc = &Encoding{Name: canonical, codec: codec}
	if normalize(canonical) != key {
		enc.Aliases = []string{name}
	}
	m.register(enc)
	return enc, nil
}

// List returns the registered encodings in registration order.
func (m *Manager) List() []*Encoding {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.list)
}

func (m *Manager) DefaultExternal() *Encoding {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultExternal
}

// DefaultInternal returns nil unless a default internal encoding was set.
func (m *Manager) DefaultInternal() *Encoding {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultInternal
}

func (m *Manager) SetDefaultExternal(name string) error {
	enc, err := m.Find(name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.defaultExternal = enc
	m.mu.Unlock()
	return nil
}

// SetDefaultInternal sets the default internal encoding; "" clears it.
func (m *Manager) SetDefaultInternal(name string) error {
	var enc *Encoding
	if name != "" {
		var err error
		if enc, err = m.Find(name); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.defaultInternal = enc
	m.mu.Unlock()
	return nil
}

// Decode converts b from e to a UTF-8 Go string. Binary data and encodings
// without a codec are passed through unchanged.
func (e *Encoding) Decode(b []byte) (string, error) {
	if e.codec == nil {
		return string(b), nil
	}
	out, err := e.codec.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", e.Name, err)
	}
	return string(out), nil
}

// Encode converts a UTF-8 Go string to e.
func (e *Encoding) Encode(s string) ([]byte, error) {
	if e.codec == nil {
		return []byte(s), nil
	}
	out, err := e.codec.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Name, err)
	}
	return out, nil
}

// ConstantName is the name under which the encoding is exposed on the
// Encoding class, e.g. UTF_8 or ISO_8859_1.
func (e *Encoding) ConstantName() string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(e.Name))
}

func (e *Encoding) String() string { return e.Name }

func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// SPDX-License-Identifier: MPL-2.0

// Package console holds the line editor used by interactive guest code.
package console

import (
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Holder creates its line editor on first use. Lines are terminated by a
// carriage return, as delivered by a terminal in raw mode.
type Holder struct {
	in  io.Reader
	out io.Writer

	once sync.Once
	mu   sync.Mutex
	term *term.Terminal

	history []string
}

type readWriter struct {
	io.Reader
	io.Writer
}

func New(in io.Reader, out io.Writer) *Holder {
	return &Holder{in: in, out: out}
}

// IsInteractive reports whether stdin is a terminal.
func (h *Holder) IsInteractive() bool {
	f, ok := h.in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (h *Holder) editor() *term.Terminal {
	h.once.Do(func() {
		h.term = term.NewTerminal(readWriter{Reader: h.in, Writer: h.out}, "")
	})
	return h.term
}

// Started reports whether the line editor was created.
func (h *Holder) Started() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.term != nil
}

// ReadLine prompts and reads one line. Non-empty lines are added to the
// history. At end of input it returns io.EOF.
func (h *Holder) ReadLine(prompt string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := h.editor()
	if h.IsInteractive() {
		fd := int(h.in.(*os.File).Fd())
		state, err := term.MakeRaw(fd)
		if err != nil {
			return "", err
		}
		defer func() { _ = term.Restore(fd, state) }()
	}

	t.SetPrompt(prompt)
	line, err := t.ReadLine()
	if err != nil {
		return line, err
	}
	if line != "" {
		h.history = append(h.history, line)
	}
	return line, nil
}

// History returns the lines read so far, oldest first.
func (h *Holder) History() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.history...)
}

// SPDX-License-Identifier: MPL-2.0

package instrument

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"

	"github.com/corvidvm/corvid/internal/metrics"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitUnknownVerb = 127
)

type command func(ctx context.Context, w io.Writer) error

func (s *Server) commands() map[string]command {
	return map[string]command{
		"health":  s.health,
		"threads": s.threads,
		"stacks":  s.stacks,
		"metrics": s.metrics,
	}
}

// commandMiddleware runs the session's command. It never calls next: every
// session is a single non-interactive command.
func (s *Server) commandMiddleware() wish.Middleware {
	return func(ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			args := sess.Command()
			if len(args) == 0 {
				_, _ = fmt.Fprintf(sess.Stderr(), "usage: ssh %s@<host> <health|threads|stacks|metrics>\n", User)
				_ = sess.Exit(exitFailure)
				return
			}
			cmd, ok := s.commands()[args[0]]
			if !ok {
				_, _ = fmt.Fprintf(sess.Stderr(), "unknown command %q\n", args[0])
				_ = sess.Exit(exitUnknownVerb)
				return
			}

			ctx, cancel := context.WithTimeout(sess.Context(), s.cfg.ShutdownTimeout)
			defer cancel()
			if err := cmd(ctx, sess); err != nil {
				_, _ = fmt.Fprintf(sess.Stderr(), "%s: %v\n", args[0], err)
				_ = sess.Exit(exitFailure)
				return
			}
			_ = sess.Exit(exitOK)
		}
	}
}

// logMiddleware logs each session once it ends.
func (s *Server) logMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			start := time.Now()
			next(sess)
			s.logger.Debug("instrumentation session",
				"user", sess.User(),
				"remote", sess.RemoteAddr().String(),
				"command", strings.Join(sess.Command(), " "),
				"duration", time.Since(start))
		}
	}
}

func (s *Server) health(_ context.Context, w io.Writer) error {
	_, err := fmt.Fprintf(w, "status=ok context=%s state=%s threads=%d uptime=%s\n",
		s.probe.ContextID(), s.State(), len(s.probe.Threads()), s.uptime().Round(time.Millisecond))
	return err
}

func (s *Server) threads(_ context.Context, w io.Writer) error {
	for _, t := range s.probe.Threads() {
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, t.Name, t.Status); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) stacks(ctx context.Context, w io.Writer) error {
	traces, err := s.probe.Stacks(ctx)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(traces))
	for id := range traces {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		frames := traces[id]
		if _, err := fmt.Fprintf(w, "thread %d\n", id); err != nil {
			return err
		}
		if len(frames) == 0 {
			frames = []string{"<no frames>"}
		}
		if _, err := fmt.Fprintf(w, "\t%s\n", strings.Join(frames, "\n\t")); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) metrics(_ context.Context, w io.Writer) error {
	return metrics.WriteText(w, s.probe.Gatherer())
}

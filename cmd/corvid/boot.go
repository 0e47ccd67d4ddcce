// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/corvidvm/corvid/internal/instrument"
	"github.com/corvidvm/corvid/internal/vmctx"
)

type (
	bootFlags struct {
		wait bool
	}

	// stageTimer measures construction stages from the stage hook: a stage
	// ends when the next one starts, the last one when construction ends.
	stageTimer struct {
		mu      sync.Mutex
		names   []string
		starts  []time.Time
		endedAt time.Time
	}
)

func newBootCommand(flags *rootFlags) *cobra.Command {
	bf := &bootFlags{}
	cmd := &cobra.Command{
		Use:   "boot [script]",
		Short: "Construct a runtime context, report it, and shut it down",
		Long: `Construct a runtime context with the resolved options, print a summary of
the construction stages, and shut the context down again.

With --wait the context stays up until interrupted, which keeps the
instrumentation server (instrumentation_server.port) reachable.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script := ""
			if len(args) == 1 {
				script = args[0]
			}
			return runBoot(cmd, flags, bf, script)
		},
	}
	cmd.Flags().BoolVar(&bf.wait, "wait", false, "keep the context running until interrupted")
	return cmd
}

func runBoot(cmd *cobra.Command, flags *rootFlags, bf *bootFlags, script string) error {
	if script != "" {
		if _, err := os.Stat(script); err != nil {
			return flags.fail(cmd, fmt.Errorf("script: %w", err))
		}
	}
	env, err := flags.envOrFail(cmd)
	if err != nil {
		return err
	}
	timer := &stageTimer{}
	env.StageHook = timer.hook

	ctx := cmd.Context()
	c, err := vmctx.New(ctx, env)
	if err != nil {
		return flags.fail(cmd, err)
	}
	timer.finish()
	if script != "" {
		c.SetOriginalInputFile(script)
	}

	out := cmd.OutOrStdout()
	renderContext(out, c)
	renderStages(out, timer)

	if bf.wait {
		if srv := c.InstrumentationServer(); srv != nil {
			fmt.Fprintf(out, "\n%s ssh -p %d %s@127.0.0.1 health\n%s %s\n",
				SubtitleStyle.Render("instrumentation:"), srv.Port(), instrument.User,
				SubtitleStyle.Render("password:"), srv.Token())
		}
		fmt.Fprintln(out, SubtitleStyle.Render("\nwaiting for interrupt..."))
		<-ctx.Done()
	}

	if err := c.Shutdown(context.WithoutCancel(ctx)); err != nil {
		return flags.fail(cmd, err)
	}
	fmt.Fprintln(out, SuccessStyle.Render("✓")+" context shut down")
	return nil
}

func (t *stageTimer) hook(_ context.Context, stage string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names = append(t.names, stage)
	t.starts = append(t.starts, time.Now())
	return nil
}

func (t *stageTimer) finish() {
	t.mu.Lock()
	t.endedAt = time.Now()
	t.mu.Unlock()
}

// durations returns each stage with its elapsed time, in run order.
func (t *stageTimer) durations() ([]string, []time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]time.Duration, len(t.names))
	for i := range t.names {
		end := t.endedAt
		if i+1 < len(t.starts) {
			end = t.starts[i+1]
		}
		out[i] = end.Sub(t.starts[i])
	}
	return t.names, out
}

func renderContext(w io.Writer, c *vmctx.Context) {
	fmt.Fprintln(w, TitleStyle.Render("corvid context ")+ValueStyle.Render(c.ID()))
	home := c.Home()
	row(w, "home", fmt.Sprintf("%s (%s)", home, home.Source))
	row(w, "platform", fmt.Sprintf("%s, pid %d", c.Platform().Kind(), c.Platform().Pid()))
	row(w, "encoding", c.Encodings().DefaultExternal().Name)
	row(w, "threads", fmt.Sprint(len(c.Threads().List())))
	row(w, "core sources", fmt.Sprint(len(c.CoreLibrary().LoadedSources())))
	row(w, "built-in methods", fmt.Sprint(c.CoreMethods().Len()))
	row(w, "sharing", fmt.Sprint(c.SharedObjects().IsSharing()))
	if f := c.OriginalInputFile(); f != "" {
		row(w, "script", f)
	}
}

func renderStages(w io.Writer, t *stageTimer) {
	fmt.Fprintln(w, TitleStyle.Render("\nconstruction stages"))
	names, durations := t.durations()
	for i, name := range names {
		row(w, name, durations[i].Round(time.Microsecond).String())
	}
}

func row(w io.Writer, label, value string) {
	fmt.Fprintln(w, "  "+LabelStyle.Render(label)+ValueStyle.Render(value))
}

// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

const (
	ConfigLoadFailedId Id = iota + 1
	InvalidOptionId
	HomeNotFoundId
	ContextConstructionFailedId
	CoreLibraryNotFoundId
	InstrumentationServerFailedId
	CallGraphWriteFailedId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal markdown using the given glamour style
// ("auto", "dark", "light", "notty" or a path to a JSON style).
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load runtime options!

An options or properties file could not be read or did not match the options schema.

## Things you can try:
- Check the file for CUE syntax errors
- Compare the keys against the resolved defaults:
~~~
$ corvid options
~~~
- Properties files use ` + "`key=value`" + ` lines; corvid keys carry the ` + "`corvid.`" + ` prefix.`,
	}

	invalidOptionIssue = &Issue{
		id: InvalidOptionId,
		mdMsg: `
# Invalid runtime option!

One of the configured options has a value corvid does not recognize.

## Accepted values:
- ` + "`verbosity`" + `: TRUE, FALSE or NIL
- ` + "`log.level`" + `: debug, info, warn or error
- ` + "`instrumentation_server.port`" + `: 0 (disabled) to 65535
- boolean options: true or false

## Where options come from (highest priority first):
1. Embedding configuration and ` + "`--options`" + ` files
2. ` + "`CORVID_<KEY>`" + ` environment variables
3. ` + "`corvid.<key>`" + ` process properties`,
	}

	homeNotFoundIssue = &Issue{
		id: HomeNotFoundId,
		mdMsg: `
# Could not determine the corvid home!

No explicit home was configured and the directory layout around the binary
does not look like a distribution or a development checkout.

## Things you can try:
- Set the home explicitly:
~~~
$ export CORVID_HOME=/opt/corvid
~~~
- Or pass it as a property:
~~~
$ corvid boot -D corvid.home=/opt/corvid
~~~`,
	}

	contextConstructionFailedIssue = &Issue{
		id: ContextConstructionFailedId,
		mdMsg: `
# The runtime context failed to boot!

A construction stage raised an error. The context was discarded and
nothing constructed after the failing stage is usable.

## Things you can try:
- Re-run with ` + "`--verbose`" + ` to see which stage failed
- Set ` + "`CORVID_LOG_LEVEL=debug`" + ` to trace each stage as it runs`,
	}

	coreLibraryNotFoundIssue = &Issue{
		id: CoreLibraryNotFoundId,
		mdMsg: `
# Core library sources are missing!

The core library manifest could not be found at the configured load path
or under ` + "`<home>/lib/core`" + `.

## Things you can try:
- Point ` + "`core.load_path`" + ` at a directory containing ` + "`manifest.txt`" + `
- Unset ` + "`core.load_path`" + ` to fall back to the built-in core`,
	}

	instrumentationServerFailedIssue = &Issue{
		id: InstrumentationServerFailedId,
		mdMsg: `
# The instrumentation server could not start!

The port configured in ` + "`instrumentation_server.port`" + ` is probably in use.

## Things you can try:
- Choose another port:
~~~
$ CORVID_INSTRUMENTATION_SERVER_PORT=7022 corvid boot
~~~
- Disable the server by setting the port to 0`,
	}

	callGraphWriteFailedIssue = &Issue{
		id: CallGraphWriteFailedId,
		mdMsg: `
# The call graph could not be written!

Shutdown completed, but the call-graph dump did not reach ` + "`call_graph.write`" + `.

## Things you can try:
- Make sure the parent directory exists and is writable
- Leave ` + "`call_graph.write`" + ` empty to resolve the graph without writing it`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():            configLoadFailedIssue,
		invalidOptionIssue.Id():               invalidOptionIssue,
		homeNotFoundIssue.Id():                homeNotFoundIssue,
		contextConstructionFailedIssue.Id():   contextConstructionFailedIssue,
		coreLibraryNotFoundIssue.Id():         coreLibraryNotFoundIssue,
		instrumentationServerFailedIssue.Id(): instrumentationServerFailedIssue,
		callGraphWriteFailedIssue.Id():        callGraphWriteFailedIssue,
	}
)

// Values returns every catalog entry ordered by ID.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}

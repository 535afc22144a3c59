package tui

import (
	"strings"

	"charm.land/glamour/v2"
	"github.com/mark3labs/reposync/internal/wizard"
)

// stepHelp is the markdown shown under each step heading.
var stepHelp = map[wizard.StepID]string{
	wizard.StepAuthType: "Choose **personal access token** to paste a token below, or **app** " +
		"to reuse an app connection that is already installed on the instance.",
	wizard.StepConnection: "Point the instance at the repository. The resource is created as " +
		"soon as you continue; cancelling after this step deletes it again.",
	wizard.StepBootstrap: "`folder` keeps the repository content in its own folder. " +
		"`instance` makes the repository the source of truth for the whole instance " +
		"and may require migrating existing resources.",
	wizard.StepSynchronize: "The first synchronization is running on the server. You can leave " +
		"once it has finished; a failed job can be retried with `ctrl+r`.",
	wizard.StepFinish: "Fine tune how the repository is kept in sync, then press **Finish**.",
}

// localHelp overrides the first two entries for local storage.
var localHelp = map[wizard.StepID]string{
	wizard.StepAuthType:   "Local storage reads resources from a directory on the server. No credentials are needed.",
	wizard.StepConnection: "Enter the absolute path of the directory on the server.",
}

// renderMarkdown renders markdown content using glamour.
// Falls back to the raw text if rendering fails.
func renderMarkdown(content string, width int) string {
	if width > 120 {
		width = 120
	}
	if width < 20 {
		width = 20
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content
	}

	return strings.Trim(rendered, "\n")
}

// helpCache keeps rendered help per step and width; glamour renderers are
// comparatively slow to build.
type helpCache struct {
	local   bool
	width   int
	entries map[wizard.StepID]string
}

func newHelpCache(local bool) *helpCache {
	return &helpCache{local: local, entries: make(map[wizard.StepID]string)}
}

func (c *helpCache) get(id wizard.StepID, width int) string {
	if width != c.width {
		c.width = width
		c.entries = make(map[wizard.StepID]string)
	}
	if out, ok := c.entries[id]; ok {
		return out
	}

	src := stepHelp[id]
	if c.local {
		if override, ok := localHelp[id]; ok {
			src = override
		}
	}
	out := ""
	if src != "" {
		out = renderMarkdown(src, width)
	}
	c.entries[id] = out
	return out
}

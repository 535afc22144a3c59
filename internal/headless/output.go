package headless

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	chroma "github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/colorprofile"
	"github.com/mark3labs/reposync/internal/tui/theme"
)

// Printer writes progress lines. Colors are downsampled to what the
// destination supports, so piping to a file yields plain text.
type Printer struct {
	w io.Writer
}

// NewPrinter wraps w in a color profile writer detected from the environment.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: colorprofile.NewWriter(w, os.Environ())}
}

// NewPlainPrinter writes without any styling.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: &colorprofile.Writer{Forward: w, Profile: colorprofile.NoTTY}}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

func (p *Printer) line(style lipgloss.Style, prefix, format string, args ...any) {
	fmt.Fprintln(p.w, style.Render(prefix+" "+fmt.Sprintf(format, args...)))
}

// Step announces a step.
func (p *Printer) Step(format string, args ...any) {
	p.line(theme.Current().S().StepHeading, "→", format, args...)
}

// OK reports a success.
func (p *Printer) OK(format string, args ...any) {
	p.line(theme.Current().S().BannerSuccess, "✓", format, args...)
}

// Warn reports an advisory.
func (p *Printer) Warn(format string, args ...any) {
	t := theme.Current()
	p.line(t.S().Value.Foreground(lipgloss.Color(t.Warning)), "!", format, args...)
}

// Fail reports a failure.
func (p *Printer) Fail(format string, args ...any) {
	p.line(theme.Current().S().FieldError, "✗", format, args...)
}

// Info prints a muted detail line.
func (p *Printer) Info(format string, args ...any) {
	p.line(theme.Current().S().Muted, " ", format, args...)
}

// JSON pretty-prints v with syntax highlighting.
func (p *Printer) JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode: %w", err)
	}
	fmt.Fprintln(p.w, Highlight(string(data), "json"))
	return nil
}

// Table prints rows under headers with the theme's border color.
func (p *Printer) Table(headers []string, rows [][]string) {
	t := theme.Current()
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgMuted))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return t.S().Label.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	fmt.Fprintln(p.w, tbl.String())
}

// Highlight colors source with chroma. Unknown languages and tokenizer
// failures return source unchanged.
func Highlight(source, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		return source
	}
	lexer = chroma.Coalesce(lexer)

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}
	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return source
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return source
	}
	return strings.TrimRight(buf.String(), "\n")
}

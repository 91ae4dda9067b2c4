package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// styles holds the text-mode palette.
type styles struct {
	title   lipgloss.Style
	ok      lipgloss.Style
	err     lipgloss.Style
	warn    lipgloss.Style
	muted   lipgloss.Style
	path    lipgloss.Style
	heading lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	if !color {
		plain := r.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain, plain}
	}
	return styles{
		title:   r.NewStyle().Bold(true),
		ok:      r.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true),
		err:     r.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("#FFC107")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#808080")),
		path:    r.NewStyle().Foreground(lipgloss.Color("#2196F3")),
		heading: r.NewStyle().Bold(true).Underline(true),
	}
}

// write renders v as json or yaml, or calls text for the text format.
func (a *app) write(w io.Writer, v interface{}, text func(io.Writer, styles) error) error {
	switch strings.ToLower(a.cfg.Output.Format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		return text(w, newStyles(w, a.cfg.Output.Color))
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", a.cfg.Output.Format)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// Package report renders projection results as markdown.
package report

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"

	"patrimonio/internal/core"
)

//go:embed templates/*.md
var templates embed.FS

var levelLabels = map[core.AdvisoryLevel]string{
	core.AdvisoryCritical: "Attenzione",
	core.AdvisoryInfo:     "Nota",
	core.AdvisorySuccess:  "Ottimo",
}

var projectionTemplate = template.Must(template.New("projection.md").
	Funcs(template.FuncMap{
		"euros":    core.FormatEuros,
		"percent":  percent,
		"fraction": func(v float64) string { return percent(v * 100) },
		"level":    func(l core.AdvisoryLevel) string { return levelLabels[l] },
	}).
	ParseFS(templates, "templates/projection.md"))

type view struct {
	*core.ProjectionResult
	Label string
}

// HasTarget reports whether the run was given a goal. Without one every path
// trivially succeeds, so the goal section is left out.
func (v view) HasTarget() bool {
	return v.Config.TargetAmount > 0
}

// Markdown renders result as a markdown document titled with label.
func Markdown(label string, result *core.ProjectionResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("render report: nil result")
	}
	var b strings.Builder
	if err := projectionTemplate.Execute(&b, view{ProjectionResult: result, Label: label}); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return b.String(), nil
}

// Terminal renders markdown for a terminal. An empty style picks one from
// the terminal background; width 0 disables wrapping.
func Terminal(markdown, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("terminal renderer: %w", err)
	}
	return r.Render(markdown)
}

// percent formats a percentage with one decimal and a comma separator.
func percent(v float64) string {
	return strings.Replace(decimal.NewFromFloat(v).StringFixed(1), ".", ",", 1) + "%"
}

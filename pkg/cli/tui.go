package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme of frames.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Dimmed/help text color
	Alert   lipgloss.Color // Failures
}

// DefaultTheme is a warm kitchen orange.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#ff9f43"),
	Dim:     lipgloss.Color("#6e7681"),
	Alert:   lipgloss.Color("#ff5f5f"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
	Alert  lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border: lipgloss.NewStyle().Foreground(t.Primary),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
		Alert:  lipgloss.NewStyle().Bold(true).Foreground(t.Alert),
	}
}

// Section is a labeled block of text lines.
type Section struct {
	Label string
	Lines []string
}

// Frame is a bordered box with a title line and labeled sections. Long
// lines are word-wrapped to the frame width.
type Frame struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
	Help     string

	// MaxLines keeps only the last lines of each section. Zero keeps all.
	MaxLines int
}

// Render renders the frame width columns wide.
func (f Frame) Render(width int) string {
	width = max(width, 20)
	bc := f.Styles.Border
	contentWidth := width - 4

	var lines []string
	lines = append(lines, bc.Render("╭"+strings.Repeat("─", width-2)+"╮"))

	// │ title [status] ... │
	title := f.Styles.Title.Render(f.Title)
	status := ""
	if f.Status != "" {
		status = f.Styles.Help.Render("[" + f.Status + "]")
	}
	padding := max(0, width-5-lipgloss.Width(title)-lipgloss.Width(status))
	lines = append(lines, bc.Render("│")+" "+title+" "+status+strings.Repeat(" ", padding)+" "+bc.Render("│"))

	for _, sec := range f.Sections {
		lines = append(lines, f.renderSection(sec, width, contentWidth)...)
	}

	lines = append(lines, bc.Render("╰"+strings.Repeat("─", width-2)+"╯"))
	if f.Help != "" {
		lines = append(lines, f.Styles.Help.Render(f.Help))
	}
	return strings.Join(lines, "\n")
}

// renderSection renders ├─Label──┤ followed by the wrapped lines.
func (f Frame) renderSection(sec Section, width, contentWidth int) []string {
	bc := f.Styles.Border
	label := f.Styles.Label.Render(sec.Label)
	padding := max(0, width-3-lipgloss.Width(label))
	out := []string{bc.Render("├") + bc.Render("─") + label + bc.Render(strings.Repeat("─", padding)) + bc.Render("┤")}

	var wrapped []string
	for _, l := range sec.Lines {
		wrapped = append(wrapped, wrap(l, contentWidth)...)
	}
	if f.MaxLines > 0 && len(wrapped) > f.MaxLines {
		wrapped = wrapped[len(wrapped)-f.MaxLines:]
	}
	for _, text := range wrapped {
		out = append(out, bc.Render("│")+" "+text+
			strings.Repeat(" ", max(0, contentWidth-lipgloss.Width(text)))+" "+bc.Render("│"))
	}
	return out
}

func wrap(s string, width int) []string {
	if s == "" {
		return []string{""}
	}
	if lipgloss.Width(s) <= width {
		return []string{s}
	}
	return strings.Split(lipgloss.NewStyle().Width(width).Render(s), "\n")
}

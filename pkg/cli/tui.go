package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/haivivi/voicegate/pkg/session"
	"github.com/haivivi/voicegate/pkg/voiceprint"
)

// Theme defines the color scheme for the meter.
type Theme struct {
	Primary lipgloss.Color // Speaking and verified
	Warn    lipgloss.Color // Multiple speakers
	Dim     lipgloss.Color // Idle and secondary fields
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Warn:    lipgloss.Color("#ffb86c"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Active lipgloss.Style
	Warn   lipgloss.Style
	Dim    lipgloss.Style
	Label  lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Active: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Warn:   lipgloss.NewStyle().Bold(true).Foreground(t.Warn),
		Dim:    lipgloss.NewStyle().Foreground(t.Dim),
		Label:  lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Meter prints session events. On a terminal it redraws one styled line in
// place; otherwise it writes one plain line per event.
type Meter struct {
	w      io.Writer
	tty    bool
	styles Styles
	width  int
}

// NewMeter creates a Meter writing to w.
func NewMeter(w io.Writer) *Meter {
	return &Meter{
		w:      w,
		tty:    IsTerminal(w),
		styles: NewStyles(DefaultTheme),
		width:  20,
	}
}

// Update draws ev.
func (m *Meter) Update(ev session.Event) {
	if m.tty {
		fmt.Fprint(m.w, "\r\033[K"+m.Render(ev))
		return
	}
	fmt.Fprintln(m.w, m.Plain(ev))
}

// Done ends the in-place line.
func (m *Meter) Done() {
	if m.tty {
		fmt.Fprintln(m.w)
	}
}

// Render formats ev as a styled line.
func (m *Meter) Render(ev session.Event) string {
	s := m.styles
	state := s.Dim.Render("○ idle    ")
	bar := s.Dim.Render(Bar(ev.Activity.Confidence, m.width))
	if ev.Speaking {
		state = s.Active.Render("● speaking")
		bar = s.Active.Render(Bar(ev.Activity.Confidence, m.width))
	}
	parts := []string{
		state,
		bar,
		s.Label.Render("noise ") + fmt.Sprintf("%.3f", ev.Activity.NoiseLevel),
		s.Label.Render("gain ") + fmt.Sprintf("%.2f×%.2f", ev.GateGain, ev.MasterGain),
	}
	if who := speaker(ev); who != "" {
		style := s.Active
		if ev.Speaker != nil && ev.Speaker.Status != voiceprint.StatusSingle {
			style = s.Warn
		}
		parts = append(parts, style.Render(who))
	}
	return strings.Join(parts, "  ")
}

// Plain formats ev without styling.
func (m *Meter) Plain(ev session.Event) string {
	state := "idle"
	if ev.Speaking {
		state = "speaking"
	}
	line := fmt.Sprintf("%s seq=%d conf=%.2f noise=%.3f gate=%.2f master=%.2f",
		state, ev.Seq, ev.Activity.Confidence, ev.Activity.NoiseLevel, ev.GateGain, ev.MasterGain)
	if who := speaker(ev); who != "" {
		line += " speaker=" + who
	}
	return line
}

func speaker(ev session.Event) string {
	if ev.Speaker != nil {
		if ev.Speaker.Speaker != "" {
			return fmt.Sprintf("%s (%s)", ev.Speaker.Speaker, ev.Speaker.Status)
		}
		return ev.Speaker.Status.String()
	}
	if v := ev.Verification; v != nil && v.Verified && v.Profile != nil {
		return v.Profile.Name
	}
	return ""
}

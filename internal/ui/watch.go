package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	photoprogress "github.com/aman-oss/photoidx/internal/progress"
)

// pollInterval is how often the watch view re-reads the status file.
const pollInterval = 200 * time.Millisecond

// Watch runs a full-screen view of the job whose status lives in dir
// (spec §4.8's index_status.json), polling until it reaches a terminal
// state or the user quits. Returns the final status if one was observed.
func Watch(ctx context.Context, dir string, noColor bool) (photoprogress.Status, error) {
	m := newWatchModel(dir, noColor)
	p := tea.NewProgram(m, tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return photoprogress.Status{}, err
	}
	return final.(*watchModel).status, nil
}

type statusMsg struct {
	status photoprogress.Status
	found  bool
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func pollCmd(dir string) tea.Cmd {
	return func() tea.Msg {
		status, err := photoprogress.ReadStatus(dir)
		if err != nil {
			return statusMsg{found: false}
		}
		return statusMsg{status: status, found: true}
	}
}

type watchModel struct {
	dir    string
	styles Styles
	width  int

	spinner     spinner.Model
	progressBar progress.Model
	sparkline   *Sparkline

	status     photoprogress.Status
	found      bool
	lastDone   int
	lastSample time.Time
	speed      float64
	quitting   bool
}

func newWatchModel(dir string, noColor bool) *watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	p := progress.New(progress.WithSolidFill(ColorLime), progress.WithWidth(50))

	return &watchModel{
		dir:         dir,
		styles:      GetStyles(noColor),
		width:       80,
		spinner:     s,
		progressBar: p,
		sparkline:   NewSparkline(60),
		lastSample:  time.Now(),
	}
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd(), pollCmd(m.dir))
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 20
		if w < 20 {
			w = 20
		}
		m.progressBar.Width = w
	case tickMsg:
		return m, tea.Batch(tickCmd(), pollCmd(m.dir))
	case statusMsg:
		if msg.found {
			m.applyStatus(msg.status)
			if terminal(msg.status.State) {
				return m, tea.Quit
			}
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *watchModel) applyStatus(s photoprogress.Status) {
	m.found = true
	m.status = s

	done := s.UpdatedDone + s.InsertDone
	now := time.Now()
	if elapsed := now.Sub(m.lastSample); elapsed >= 500*time.Millisecond {
		if delta := done - m.lastDone; delta > 0 {
			m.speed = float64(delta) / elapsed.Seconds()
			m.sparkline.Add(m.speed)
		}
		m.lastDone = done
		m.lastSample = now
	}
}

func terminal(s photoprogress.State) bool {
	switch s {
	case photoprogress.StateComplete, photoprogress.StateError, photoprogress.StateCancelled:
		return true
	default:
		return false
	}
}

func (m *watchModel) View() string {
	if m.quitting {
		return "stopped watching (job keeps running in its own process)\n"
	}
	if !m.found {
		return fmt.Sprintf("%s waiting for %s\n", m.spinner.View(), m.dir)
	}

	total := m.status.UpdatedTotal + m.status.InsertTotal
	done := m.status.UpdatedDone + m.status.InsertDone
	frac := 0.0
	if total > 0 {
		frac = float64(done) / float64(total)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", m.styles.Header.Render(string(m.status.Kind)), m.styles.Dim.Render(stateLabel(m.status.State)))
	fmt.Fprintf(&b, "%s %d/%d\n", m.progressBar.ViewAs(frac), done, total)
	fmt.Fprintf(&b, "%s %.1f/s  %s\n", m.styles.Label.Render("throughput"), m.speed, m.styles.Sparkline.Render(m.sparkline.Render()))
	if m.status.Error != "" {
		fmt.Fprintf(&b, "%s %s\n", m.styles.Error.Render("error"), m.status.Error)
	}
	if terminal(m.status.State) {
		fmt.Fprintln(&b, m.styles.Dim.Render("job finished; exiting"))
	} else {
		fmt.Fprintln(&b, m.styles.Dim.Render("q to stop watching"))
	}
	return m.styles.Panel.Render(b.String())
}

func stateLabel(s photoprogress.State) string {
	return "[" + string(s) + "]"
}

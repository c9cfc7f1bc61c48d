package viz

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// ProgressMsg reports done of total trials finished for the grid point
// named Label.
type ProgressMsg struct {
	Label       string
	Done, Total int
}

type finishedMsg struct{ err error }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// SweepProgress shows the running grid point, a bar for its trials and the
// points finished so far.
type SweepProgress struct {
	title     string
	label     string
	done      int
	total     int
	points    int
	frame     int
	start     time.Time
	width     int
	err       error
	finished  bool
	cancelled bool
}

func NewSweepProgress(title string) SweepProgress {
	return SweepProgress{title: title, start: time.Now(), width: 80}
}

func (m SweepProgress) Init() tea.Cmd { return tick() }

func (m SweepProgress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		if msg.Label != m.label {
			if m.label != "" {
				m.points++
			}
			m.label, m.done = msg.Label, 0
		}
		// callbacks from concurrent workers may arrive out of order
		m.done, m.total = max(m.done, msg.Done), msg.Total
	case tickMsg:
		m.frame++
		return m, tick()
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	case finishedMsg:
		m.finished, m.err = true, msg.err
		if m.label != "" {
			m.points++
		}
		return m, tea.Quit
	}
	return m, nil
}

// Cancelled reports whether the user quit before the sweep finished.
func (m SweepProgress) Cancelled() bool { return m.cancelled }

func (m SweepProgress) View() string {
	var b strings.Builder
	b.WriteString(Title.Render(m.title))
	b.WriteString("  ")
	b.WriteString(Subtle.Render(time.Since(m.start).Truncate(time.Second).String()))
	b.WriteString("\n")

	frac := 0.0
	if m.total > 0 {
		frac = float64(m.done) / float64(m.total)
	}
	barWidth := max(min(m.width-30, 50), 10)
	icon := Spinner(m.frame)
	if m.finished {
		icon = StatusExited.Render("✓")
		if m.err != nil {
			icon = StatusFailed.Render("✗")
		}
	}
	fmt.Fprintf(&b, "%s %s %s %d/%d\n", icon, MetricLabel.Render(m.label), ProgressBar(frac, barWidth), m.done, m.total)
	fmt.Fprintf(&b, "%s %d\n", MetricLabel.Render("grid points done:"), m.points)
	if !m.finished {
		b.WriteString(Subtle.Render("q to cancel"))
		b.WriteString("\n")
	}
	return b.String()
}

// RunProgress runs work while a SweepProgress is drawn on out. work gets a
// progress callback that is safe for concurrent use. Quitting the view
// cancels the context passed to work.
func RunProgress(ctx context.Context, title string, out io.Writer, work func(ctx context.Context, progress func(label string, done, total int)) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewSweepProgress(title), tea.WithOutput(out), tea.WithContext(ctx))
	errc := make(chan error, 1)
	go func() {
		err := work(ctx, func(label string, done, total int) {
			p.Send(ProgressMsg{Label: label, Done: done, Total: total})
		})
		errc <- err
		p.Send(finishedMsg{err: err})
	}()

	final, runErr := p.Run()
	if m, ok := final.(SweepProgress); runErr != nil || (ok && m.Cancelled()) {
		cancel()
	}
	err := <-errc
	if err == nil && runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return err
}

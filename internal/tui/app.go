package tui

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/heavysql/internal/orchestrator"
	"github.com/ShayCichocki/heavysql/pkg/models"
)

// EventMsg wraps an orchestrator event for the TUI.
type EventMsg struct {
	Event orchestrator.Event
}

// DoneMsg signals that the analysis returned.
type DoneMsg struct {
	Analysis *models.HeavyAnalysis
	Err      error
}

type eventsClosedMsg struct{}

// waitForEvent reads the next event from ch.
func waitForEvent(ch <-chan orchestrator.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

// App is the bubbletea model for a heavy analysis.
type App struct {
	question string
	runID    string
	events   <-chan orchestrator.Event
	cancel   context.CancelFunc

	data    [models.NumAgents]*AgentCardData
	cards   [models.NumAgents]*AgentCard
	spinner spinner.Model

	phase    string
	degraded bool
	report   *models.SynthesisReport
	done     bool
	quitting bool
	err      error
	width    int

	headerStyle lipgloss.Style
	phaseStyle  lipgloss.Style
	reportStyle lipgloss.Style
	errorStyle  lipgloss.Style
	warnStyle   lipgloss.Style
}

// NewApp creates the model. cancel, when set, is called if the user quits
// before the analysis returns.
func NewApp(question string, events <-chan orchestrator.Event, cancel context.CancelFunc) *App {
	a := &App{
		question: question,
		events:   events,
		cancel:   cancel,
		phase:    "expanding question",
		width:    100,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("34")))),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1),

		phaseStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),

		reportStyle: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
	}
	for i := range a.data {
		a.data[i] = &AgentCardData{ID: i, Role: models.Roles[i], Question: question}
		a.cards[i] = NewAgentCard()
		a.cards[i].SetData(a.data[i])
	}
	a.layout()
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	if a.events == nil {
		return a.spinner.Tick
	}
	return tea.Batch(a.spinner.Tick, waitForEvent(a.events))
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			a.quitting = true
			if !a.done && a.cancel != nil {
				a.cancel()
			}
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.layout()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case EventMsg:
		a.apply(msg.Event)
		return a, waitForEvent(a.events)

	case eventsClosedMsg:
		return a, nil

	case DoneMsg:
		a.done = true
		a.err = msg.Err
		if msg.Analysis != nil {
			a.report = &msg.Analysis.Report
			a.degraded = msg.Analysis.ExpansionDegraded
			for _, r := range msg.Analysis.Results {
				a.finish(r.AgentID, r.Status, r.Confidence, r.Error, r.Duration)
			}
		}
		return a, tea.Quit
	}
	return a, nil
}

func (a *App) apply(ev orchestrator.Event) {
	if a.runID == "" {
		a.runID = ev.RunID
	}
	if ev.RunID != a.runID {
		return
	}

	switch ev.Type {
	case orchestrator.EventExpansionDone:
		a.degraded = ev.Degraded
		for _, v := range ev.Variants {
			if v.Index >= 0 && v.Index < len(a.data) {
				a.data[v.Index].Question = v.Text
			}
		}
		a.phase = "agents running"
	case orchestrator.EventAgentStarted:
		if d := a.slot(ev.AgentID); d != nil {
			d.State = CardRunning
			d.StartedAt = ev.Timestamp
			if ev.Question != "" {
				d.Question = ev.Question
			}
		}
	case orchestrator.EventAgentFinished:
		a.finish(ev.AgentID, ev.Status, ev.Confidence, ev.Message, ev.Duration)
		if a.allResolved() {
			a.phase = "synthesizing"
		}
	case orchestrator.EventSynthesisDone:
		a.report = ev.Report
		a.phase = "synthesized"
	}
}

func (a *App) finish(id int, status models.AgentStatus, conf *float64, errMsg string, d time.Duration) {
	data := a.slot(id)
	if data == nil {
		return
	}
	data.State = stateFromStatus(status)
	data.Confidence = conf
	data.Error = errMsg
	data.Duration = d
}

func (a *App) slot(id int) *AgentCardData {
	if id < 0 || id >= len(a.data) {
		return nil
	}
	return a.data[id]
}

func (a *App) allResolved() bool {
	for _, d := range a.data {
		if d.State == CardPending || d.State == CardRunning {
			return false
		}
	}
	return true
}

func (a *App) layout() {
	w := a.width / 2
	for _, c := range a.cards {
		c.SetWidth(w)
	}
}

// View implements tea.Model.
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(a.headerStyle.Render("heavy analysis"))
	b.WriteString(" ")
	b.WriteString(truncate(a.question, a.width-18))
	b.WriteString("\n\n")

	spin := a.spinner.View()
	rows := make([]string, 0, 2)
	for i := 0; i < len(a.cards); i += 2 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, a.cards[i].View(spin), a.cards[i+1].View(spin)))
	}
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, rows...))
	b.WriteString("\n")

	if a.degraded {
		b.WriteString(a.warnStyle.Render("question expansion fell back to the original question"))
		b.WriteString("\n")
	}

	switch {
	case a.err != nil:
		b.WriteString(a.errorStyle.Render("error: " + a.err.Error()))
	case a.report != nil:
		b.WriteString(a.reportStyle.Width(max(a.width-4, 20)).Render(a.renderReport()))
	default:
		b.WriteString(a.phaseStyle.Render(spin + " " + a.phase + "  (q to cancel)"))
	}
	b.WriteString("\n")
	return b.String()
}

func (a *App) renderReport() string {
	r := a.report
	var b strings.Builder
	fmt.Fprintf(&b, "Confidence %.2f (%s), %d/%d agents valid\n", r.OverallConfidence, r.Strategy, r.ValidAnalyses, r.TotalAgents)
	b.WriteString(r.Summary)
	if r.ImprovedSQL != "" {
		b.WriteString("\nImproved SQL: ")
		b.WriteString(r.ImprovedSQL)
	}
	return b.String()
}

// Done reports whether the analysis result has been received.
func (a *App) Done() bool { return a.done }

// Run shows the live view while analyze runs, then returns its result. If the
// user quits early the analysis context is cancelled and Run still waits for
// analyze to return.
func Run(ctx context.Context, question string, events <-chan orchestrator.Event, analyze func(context.Context) (*models.HeavyAnalysis, error), opts ...tea.ProgramOption) (*models.HeavyAnalysis, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := NewApp(question, events, cancel)
	p := tea.NewProgram(app, opts...)

	type result struct {
		analysis *models.HeavyAnalysis
		err      error
	}
	resCh := make(chan result, 1)
	go func() {
		analysis, err := analyze(ctx)
		resCh <- result{analysis, err}
		p.Send(DoneMsg{Analysis: analysis, Err: err})
	}()

	if _, err := p.Run(); err != nil {
		log.Printf("[tui] program error: %v", err)
	}
	res := <-resCh
	return res.analysis, res.err
}

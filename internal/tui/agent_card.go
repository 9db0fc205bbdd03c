package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/heavysql/pkg/models"
)

// CardState is the lifecycle of one agent slot in the view.
type CardState int

const (
	CardPending CardState = iota
	CardRunning
	CardSuccess
	CardFailure
	CardTimeout
)

// String returns a short label for the state.
func (s CardState) String() string {
	switch s {
	case CardRunning:
		return "running"
	case CardSuccess:
		return "success"
	case CardFailure:
		return "failed"
	case CardTimeout:
		return "timeout"
	default:
		return "pending"
	}
}

func stateFromStatus(s models.AgentStatus) CardState {
	switch s {
	case models.AgentStatusSuccess:
		return CardSuccess
	case models.AgentStatusTimeout:
		return CardTimeout
	default:
		return CardFailure
	}
}

// AgentCardData contains the data needed to render an agent card.
type AgentCardData struct {
	// ID is the agent slot.
	ID int
	// Role is the agent's review focus.
	Role models.AgentRole
	// Question is the variant the agent answers.
	Question string
	State    CardState
	// Confidence is set when the agent succeeded and reported one.
	Confidence *float64
	// Error explains a failure or timeout.
	Error     string
	StartedAt time.Time
	// Duration is set once the slot resolved.
	Duration time.Duration
}

// AgentCard renders a single agent as a card.
type AgentCard struct {
	data  *AgentCardData
	width int

	borderStyle   lipgloss.Style
	titleStyle    lipgloss.Style
	statusRunning lipgloss.Style
	statusDone    lipgloss.Style
	statusFailed  lipgloss.Style
	statusTimeout lipgloss.Style
	statusPending lipgloss.Style
	labelStyle    lipgloss.Style
	valueStyle    lipgloss.Style
}

// NewAgentCard creates a new AgentCard instance.
func NewAgentCard() *AgentCard {
	return &AgentCard{
		width: 40,

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),

		statusRunning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green

		statusDone: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")).
			Bold(true),

		statusFailed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red

		statusTimeout: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")), // Orange

		statusPending: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
	}
}

// SetData updates the card data.
func (c *AgentCard) SetData(data *AgentCardData) {
	c.data = data
}

// SetWidth updates the card width.
func (c *AgentCard) SetWidth(width int) {
	if width < 20 {
		width = 20
	}
	c.width = width
}

// View renders the agent card. spin is the spinner frame shown while running.
func (c *AgentCard) View(spin string) string {
	inner := c.width - 4
	if c.data == nil {
		return c.borderStyle.Width(inner).Render("No agent")
	}

	var b strings.Builder
	b.WriteString(c.titleStyle.Render(fmt.Sprintf("#%d %s", c.data.ID, c.data.Role.Title())))
	b.WriteString("\n")
	b.WriteString(c.renderStatus(spin))
	b.WriteString("\n")

	b.WriteString(c.labelStyle.Render("Q: "))
	b.WriteString(c.valueStyle.Render(truncate(c.data.Question, inner-3)))
	b.WriteString("\n")

	switch c.data.State {
	case CardSuccess:
		conf := "n/a"
		if c.data.Confidence != nil {
			conf = fmt.Sprintf("%.2f", *c.data.Confidence)
		}
		b.WriteString(c.labelStyle.Render("Confidence: "))
		b.WriteString(c.valueStyle.Render(conf))
	case CardFailure, CardTimeout:
		b.WriteString(c.labelStyle.Render("Error: "))
		b.WriteString(c.valueStyle.Render(truncate(c.data.Error, inner-7)))
	default:
		b.WriteString(" ")
	}

	return c.borderStyle.Width(inner).Render(b.String())
}

func (c *AgentCard) renderStatus(spin string) string {
	switch c.data.State {
	case CardRunning:
		elapsed := ""
		if !c.data.StartedAt.IsZero() {
			elapsed = " " + formatDuration(time.Since(c.data.StartedAt))
		}
		return c.statusRunning.Render(spin + " running" + elapsed)
	case CardSuccess:
		return c.statusDone.Render("✓ success " + formatDuration(c.data.Duration))
	case CardTimeout:
		return c.statusTimeout.Render("⏱ timeout " + formatDuration(c.data.Duration))
	case CardFailure:
		return c.statusFailed.Render("✗ failed " + formatDuration(c.data.Duration))
	default:
		return c.statusPending.Render("○ pending")
	}
}

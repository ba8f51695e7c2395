// Package tui implements the interactive suggestion review flow.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/larderhq/larder/internal/cli"
	"github.com/larderhq/larder/internal/model"
)

// Reviewer resolves suggestions. Satisfied by *engine.Engine.
type Reviewer interface {
	ApproveSuggestion(ctx context.Context, id int64, reviewedBy string) (*model.IngredientRule, error)
	RejectSuggestion(ctx context.Context, id int64, reviewedBy, notes string) error
	MarkSuggestionNeedsInfo(ctx context.Context, id int64, reviewedBy, notes string) error
}

// keyMap defines the review screen keybindings.
type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Approve   key.Binding
	Reject    key.Binding
	NeedsInfo key.Binding
	Quit      key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Approve, k.Reject, k.NeedsInfo, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down}, {k.Approve, k.Reject, k.NeedsInfo, k.Quit}}
}

var defaultKeys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Approve: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "approve"),
	),
	Reject: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reject"),
	),
	NeedsInfo: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "needs info"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// resolvedMsg reports the outcome of one review action.
type resolvedMsg struct {
	err    error
	index  int
	status model.SuggestionStatus
}

// Model is the bubbletea model for the review screen.
type Model struct {
	ctx         context.Context
	reviewer    Reviewer
	reviewedBy  string
	suggestions []model.RuleSuggestion
	resolved    map[int]model.SuggestionStatus
	errs        map[int]error
	keys        keyMap
	help        help.Model
	cursor      int
	quitting    bool
}

// NewModel builds a review model over pending suggestions.
func NewModel(ctx context.Context, reviewer Reviewer, suggestions []model.RuleSuggestion, reviewedBy string) Model {
	return Model{
		ctx:         ctx,
		reviewer:    reviewer,
		reviewedBy:  reviewedBy,
		suggestions: suggestions,
		resolved:    make(map[int]model.SuggestionStatus),
		errs:        make(map[int]error),
		keys:        defaultKeys,
		help:        help.New(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resolvedMsg:
		if msg.err != nil {
			m.errs[msg.index] = msg.err
		} else {
			m.resolved[msg.index] = msg.status
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.suggestions)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Approve):
			return m, m.resolve(m.cursor, model.SuggestionApproved)
		case key.Matches(msg, m.keys.Reject):
			return m, m.resolve(m.cursor, model.SuggestionRejected)
		case key.Matches(msg, m.keys.NeedsInfo):
			return m, m.resolve(m.cursor, model.SuggestionNeedsInfo)
		}
	}

	return m, nil
}

// resolve runs a review action off the Update loop.
func (m Model) resolve(index int, status model.SuggestionStatus) tea.Cmd {
	if index < 0 || index >= len(m.suggestions) {
		return nil
	}
	if _, done := m.resolved[index]; done {
		return nil
	}
	suggestion := m.suggestions[index]

	return func() tea.Msg {
		var err error
		switch status {
		case model.SuggestionApproved:
			_, err = m.reviewer.ApproveSuggestion(m.ctx, suggestion.ID, m.reviewedBy)
		case model.SuggestionRejected:
			err = m.reviewer.RejectSuggestion(m.ctx, suggestion.ID, m.reviewedBy, "")
		case model.SuggestionNeedsInfo:
			err = m.reviewer.MarkSuggestionNeedsInfo(m.ctx, suggestion.ID, m.reviewedBy, "")
		case model.SuggestionPending:
		}
		return resolvedMsg{index: index, status: status, err: err}
	}
}

var (
	cursorStyle   = lipgloss.NewStyle().Foreground(cli.PrimaryColor).Bold(true)
	resolvedStyle = lipgloss.NewStyle().Foreground(cli.SubtleColor)
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if len(m.suggestions) == 0 {
		return cli.FormatTitle("Suggestion review") + "\n\nNo pending suggestions.\n"
	}

	var b strings.Builder
	b.WriteString(cli.FormatTitle("Suggestion review"))
	b.WriteString("\n\n")

	for i, s := range m.suggestions {
		line := fmt.Sprintf("%-11s  %s ~ %s  seen %d×  %s",
			s.SuggestionType, s.Ingredient1, s.Ingredient2,
			s.OccurrenceCount, cli.FormatConfidence(s.ConfidenceScore))

		switch {
		case m.errs[i] != nil:
			line += "  " + cli.FormatError(m.errs[i].Error())
		case m.resolved[i] != "":
			line = resolvedStyle.Render(line) + "  " + string(m.resolved[i])
		}

		prefix := "  "
		if i == m.cursor {
			prefix = cursorStyle.Render("> ")
		}
		b.WriteString(prefix + line + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys) + "\n")
	return b.String()
}

// Run starts the interactive review over pending suggestions.
func Run(ctx context.Context, reviewer Reviewer, suggestions []model.RuleSuggestion, reviewedBy string) error {
	p := tea.NewProgram(NewModel(ctx, reviewer, suggestions, reviewedBy))
	_, err := p.Run()
	return err
}

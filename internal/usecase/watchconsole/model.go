package watchconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/domain/revival"
	"hardcore/internal/errs"
	"hardcore/internal/usecase/lifecycle"
	"hardcore/internal/usecase/messages"
)

const maxShownRecords = 5

// Source is the read side of the lifecycle service.
type Source interface {
	Inspect(ctx context.Context, participantID uuid.UUID, groupKey string) (lifecycle.Snapshot, error)
	History(ctx context.Context, participantID uuid.UUID, groupKey string, limit int) ([]revival.Record, error)
}

type Options struct {
	ParticipantID   uuid.UUID
	GroupKey        string
	RefreshInterval time.Duration
}

type watchModel struct {
	ctx             context.Context
	source          Source
	participantID   uuid.UUID
	groupKey        string
	refreshInterval time.Duration

	snapshot  lifecycle.Snapshot
	loaded    bool
	history   []revival.Record
	status    string
	refreshes int
}

type snapshotLoadedMsg struct {
	snapshot lifecycle.Snapshot
	history  []revival.Record
	err      error
}

type tickMsg struct{}

func NewModel(ctx context.Context, source Source, options Options) tea.Model {
	if ctx == nil {
		ctx = context.Background()
	}
	refresh := options.RefreshInterval
	if refresh <= 0 {
		refresh = time.Second
	}
	return &watchModel{
		ctx:             logging.WithParticipant(ctx, options.ParticipantID.String(), options.GroupKey),
		source:          source,
		participantID:   options.ParticipantID,
		groupKey:        options.GroupKey,
		refreshInterval: refresh,
	}
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.tickCmd())
}

func (m *watchModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadCmd(), m.tickCmd())
	case snapshotLoadedMsg:
		m.refreshes++
		if msg.err != nil {
			m.status = "load failed: " + msg.err.Error()
			return m, nil
		}
		m.snapshot = msg.snapshot
		m.history = msg.history
		m.loaded = true
		m.status = "updated " + time.Now().Format("15:04:05")
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadCmd()
		}
	}
	return m, nil
}

func (m *watchModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	downStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	upStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Hardcore Watch"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"participant=%s group=%s refresh=%s",
		m.participantID,
		m.groupKey,
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("State"))
	builder.WriteString("\n")
	switch {
	case !m.loaded:
		builder.WriteString(dimStyle.Render("- loading"))
		builder.WriteString("\n")
	case m.snapshot.Status.Incapacitated:
		builder.WriteString(downStyle.Render("INCAPACITATED"))
		builder.WriteString("\n")
		builder.WriteString(fmt.Sprintf("Remaining: %s\n", messages.FormatClock(m.snapshot.Status.RemainingSeconds())))
		builder.WriteString(fmt.Sprintf("EligibleAt: %s\n", m.snapshot.Status.EligibleAt.UTC().Format(time.RFC3339)))
	default:
		builder.WriteString(upStyle.Render("ACTIVE"))
		builder.WriteString("\n")
		if m.snapshot.Unacknowledged {
			builder.WriteString("Revival available, not yet claimed\n")
		}
	}
	if m.loaded {
		if m.snapshot.Found {
			builder.WriteString(fmt.Sprintf("Latest: #%d method=%s completed=%t\n",
				m.snapshot.Record.ID, firstNonEmpty(m.snapshot.Record.Method(), "-"), m.snapshot.Record.Completed))
		} else {
			builder.WriteString("Latest: none\n")
		}
	}
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("History"))
	builder.WriteString("\n")
	if len(m.history) == 0 {
		builder.WriteString(dimStyle.Render("- no records"))
		builder.WriteString("\n")
	} else {
		for _, record := range m.history {
			builder.WriteString(fmt.Sprintf("- #%d %s method=%s\n",
				record.ID, record.UpdatedAt.UTC().Format(time.RFC3339), firstNonEmpty(record.Method(), "-")))
		}
	}
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")
	builder.WriteString(dimStyle.Render("Keys: g refresh  q quit"))
	return builder.String()
}

func (m *watchModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *watchModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		snapshot, err := m.source.Inspect(m.ctx, m.participantID, m.groupKey)
		if err != nil {
			logging.Error(m.ctx, "watch snapshot failed", slog.Any("err", errs.Loggable(err)))
			return snapshotLoadedMsg{err: err}
		}
		history, err := m.source.History(m.ctx, m.participantID, m.groupKey, maxShownRecords)
		if err != nil {
			return snapshotLoadedMsg{err: err}
		}
		return snapshotLoadedMsg{snapshot: snapshot, history: history}
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

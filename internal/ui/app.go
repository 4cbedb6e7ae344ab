// Package ui renders a live view of bus notifications in the terminal.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/prabalesh/hostbus/internal/models"
)

// historyLimit bounds the event log kept for the History tab.
const historyLimit = 500

// Feed is a stream of decoded events. *subscriber.Subscription satisfies it.
type Feed interface {
	Next(ctx context.Context) (models.Event, error)
}

type eventMsg struct {
	feed  int
	event models.Event
	at    time.Time
}

type feedEndedMsg struct {
	feed int
	err  error
}

type historyEntry struct {
	at    time.Time
	event models.Event
}

const (
	tabMetrics = iota
	tabPower
	tabHistory
)

type App struct {
	ctx   context.Context
	title string
	feeds []Feed
	now   func() time.Time

	metrics     models.HostMetricsEvent
	haveMetrics bool
	power       models.PowerEvent
	havePower   bool
	history     []historyEntry
	received    int
	lastEvent   time.Time

	ended int
	err   error

	activeTab int
	tabs      []string
	width     int
	height    int
	// Vertical scrolling state
	verticalScrollOffset int
	contentHeight        int

	cpuProgress     progress.Model
	memoryProgress  progress.Model
	batteryProgress progress.Model
}

// NewApp builds a view that reads from every feed until ctx is done.
func NewApp(ctx context.Context, title string, feeds ...Feed) *App {
	return &App{
		ctx:             ctx,
		title:           title,
		feeds:           feeds,
		now:             time.Now,
		tabs:            []string{"Metrics", "Power", "History"},
		cpuProgress:     progress.New(progress.WithDefaultGradient()),
		memoryProgress:  progress.New(progress.WithDefaultGradient()),
		batteryProgress: progress.New(progress.WithDefaultGradient()),
	}
}

// Err is the first stream failure other than a clean end or cancellation.
func (a *App) Err() error {
	return a.err
}

func (a *App) Init() tea.Cmd {
	cmds := make([]tea.Cmd, len(a.feeds))
	for i := range a.feeds {
		cmds[i] = a.wait(i)
	}
	return tea.Batch(cmds...)
}

// wait blocks on one feed. Each delivered event re-arms it, so a feed has
// at most one read outstanding and events keep their order.
func (a *App) wait(feed int) tea.Cmd {
	return func() tea.Msg {
		ev, err := a.feeds[feed].Next(a.ctx)
		if err != nil {
			return feedEndedMsg{feed: feed, err: err}
		}
		return eventMsg{feed: feed, event: ev, at: a.now()}
	}
}

func (a *App) record(msg eventMsg) {
	switch ev := msg.event.(type) {
	case models.HostMetricsEvent:
		a.metrics, a.haveMetrics = ev, true
	case models.PowerEvent:
		a.power, a.havePower = ev, true
	}
	a.received++
	a.lastEvent = msg.at
	a.history = append(a.history, historyEntry{at: msg.at, event: msg.event})
	if len(a.history) > historyLimit {
		a.history = a.history[len(a.history)-historyLimit:]
	}
}

// Get the height available for content (excluding sticky header elements)
func (a *App) getContentAreaHeight() int {
	// title, tabs, status and help take two lines each
	reservedHeight := 8
	return max(1, a.height-reservedHeight)
}

func (a *App) getMaxScrollOffset() int {
	availableHeight := a.getContentAreaHeight()
	if a.contentHeight <= availableHeight {
		return 0
	}
	return a.contentHeight - availableHeight
}

func (a *App) clampVerticalScroll() {
	a.verticalScrollOffset = max(0, min(a.verticalScrollOffset, a.getMaxScrollOffset()))
}

// Apply vertical scrolling to content by truncating lines
func (a *App) applyVerticalScroll(content string) string {
	lines := strings.Split(content, "\n")
	a.contentHeight = len(lines)
	a.clampVerticalScroll()

	availableHeight := a.getContentAreaHeight()
	if len(lines) <= availableHeight {
		return content
	}

	startLine := a.verticalScrollOffset
	endLine := min(startLine+availableHeight, len(lines))
	result := strings.Join(lines[startLine:endLine], "\n")

	if a.verticalScrollOffset > 0 {
		result = ScrollHintStyle.Render("▲ More content above") + "\n" + result
	}
	if a.verticalScrollOffset < a.getMaxScrollOffset() {
		result = result + "\n" + ScrollHintStyle.Render("▼ More content below")
	}
	return result
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

		progressWidth := min(50, a.width-20)
		a.cpuProgress.Width = progressWidth
		a.memoryProgress.Width = progressWidth
		a.batteryProgress.Width = min(40, a.width-25)

		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return a, tea.Quit
		case "left", "h":
			if a.activeTab > 0 {
				a.activeTab--
				a.verticalScrollOffset = 0
			}
		case "right", "l":
			if a.activeTab < len(a.tabs)-1 {
				a.activeTab++
				a.verticalScrollOffset = 0
			}
		case "up", "k":
			if a.verticalScrollOffset > 0 {
				a.verticalScrollOffset--
			}
		case "down", "j":
			a.verticalScrollOffset++
			a.clampVerticalScroll()
		case "pgup", "ctrl+u":
			scrollAmount := max(1, a.getContentAreaHeight()/2)
			a.verticalScrollOffset = max(0, a.verticalScrollOffset-scrollAmount)
		case "pgdown", "ctrl+d":
			scrollAmount := max(1, a.getContentAreaHeight()/2)
			a.verticalScrollOffset += scrollAmount
			a.clampVerticalScroll()
		case "home":
			a.verticalScrollOffset = 0
		case "end":
			a.verticalScrollOffset = a.getMaxScrollOffset()
		}

	case eventMsg:
		a.record(msg)
		return a, a.wait(msg.feed)

	case feedEndedMsg:
		a.ended++
		if a.err == nil && !errors.Is(msg.err, io.EOF) && !errors.Is(msg.err, context.Canceled) {
			a.err = msg.err
		}
	}

	return a, nil
}

func (a *App) View() string {
	if a.width == 0 {
		return "Waiting for notifications..."
	}

	title := TitleStyle.Width(a.width).Render(a.title)
	tabs := a.renderTabs()

	var content string
	switch a.activeTab {
	case tabMetrics:
		content = a.renderMetrics()
	case tabPower:
		content = a.renderPower()
	case tabHistory:
		content = a.renderHistory()
	}
	scrollableContent := a.applyVerticalScroll(content)

	help := MutedStyle.Render("←/→ h/l: tabs • ↑/↓ k/j: scroll • PgUp/PgDn: page scroll • Home/End: top/bottom • q: quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		tabs,
		"",
		scrollableContent,
		a.renderStatus(),
		"",
		help,
	)
}

func (a *App) renderTabs() string {
	var tabElements []string
	for i, tab := range a.tabs {
		if i == a.activeTab {
			tabElements = append(tabElements, ActiveTabStyle.Render(tab))
		} else {
			tabElements = append(tabElements, InactiveTabStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, tabElements...)
}

func (a *App) renderStatus() string {
	switch {
	case a.err != nil:
		return ErrorStyle.Render("Stream failed: " + a.err.Error())
	case len(a.feeds) > 0 && a.ended == len(a.feeds):
		return WarningStyle.Render(fmt.Sprintf("Stream ended after %d events", a.received))
	case a.received == 0:
		return MutedStyle.Render("No events yet")
	}
	return MutedStyle.Render(fmt.Sprintf("%d events • last at %s", a.received, a.lastEvent.Format("15:04:05")))
}

func (a *App) renderMetrics() string {
	if !a.haveMetrics {
		return BaseStyle.Width(a.width - 4).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				HeaderStyle.Render("Host Metrics"),
				"",
				MutedStyle.Render("No host metrics received yet"),
			),
		)
	}

	m := a.metrics
	cpu := float64(m.CPUUsage)
	memPercent := m.MemoryPercent()

	content := []string{
		HeaderStyle.Render("Host Metrics"),
		"",
		fmt.Sprintf("%s %s", LabelStyle.Render("CPU Usage:"), loadStyle(cpu).Render(fmt.Sprintf("%.1f%%", cpu))),
		a.cpuProgress.ViewAs(cpu / 100.0),
		"",
		fmt.Sprintf("%s %s", LabelStyle.Render("Memory Usage:"), loadStyle(memPercent).Render(fmt.Sprintf("%.1f%%", memPercent))),
		a.memoryProgress.ViewAs(memPercent / 100.0),
		"",
		fmt.Sprintf("%s %s", LabelStyle.Render("Total:"), ValueStyle.Render(formatBytes(m.TotalMemory))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Used:"), ValueStyle.Render(formatBytes(m.UsedMemory()))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Available:"), ValueStyle.Render(formatBytes(m.AvailableMemory))),
	}

	return BaseStyle.Width(a.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left, content...),
	)
}

func (a *App) renderPower() string {
	if !a.havePower {
		return BaseStyle.Width(a.width - 4).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				HeaderStyle.Render("Battery"),
				"",
				MutedStyle.Render("No power notifications received yet"),
			),
		)
	}

	p := a.power
	level := float64(p.Percentage)
	statusStyle := levelStyle(level)

	content := []string{
		HeaderStyle.Render("Battery"),
		"",
		fmt.Sprintf("%s %s", LabelStyle.Render("Status:"), statusStyle.Render(p.Status)),
		fmt.Sprintf("%s %.0f%%", LabelStyle.Render("Level:"), level),
		a.batteryProgress.ViewAs(level / 100.0),
	}

	return BaseStyle.Width(a.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left, content...),
	)
}

// renderHistory lists events newest first.
func (a *App) renderHistory() string {
	content := []string{HeaderStyle.Render("Event History"), ""}
	if len(a.history) == 0 {
		content = append(content, MutedStyle.Render("Nothing received yet"))
	}
	for i := len(a.history) - 1; i >= 0; i-- {
		h := a.history[i]
		content = append(content, fmt.Sprintf("%s %s %s",
			MutedStyle.Render(h.at.Format("15:04:05")),
			LabelStyle.Render(string(h.event.Kind())),
			summarize(h.event)))
	}
	return BaseStyle.Width(a.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left, content...),
	)
}

// summarize renders an event as schema-ordered name=value pairs.
func summarize(ev models.Event) string {
	payload := ev.Payload()
	fields := models.Schema(ev.Kind())
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		v := payload[f.Name]
		switch f.Type {
		case models.FieldFloat32:
			parts = append(parts, fmt.Sprintf("%s=%.1f", f.Name, v))
		case models.FieldUint64:
			if n, ok := v.(uint64); ok && strings.HasSuffix(f.Name, "_memory") {
				parts = append(parts, fmt.Sprintf("%s=%s", f.Name, formatBytes(n)))
				continue
			}
			parts = append(parts, fmt.Sprintf("%s=%v", f.Name, v))
		case models.FieldString:
			parts = append(parts, fmt.Sprintf("%s=%q", f.Name, v))
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", f.Name, v))
		}
	}
	return strings.Join(parts, " ")
}

func formatBytes(n uint64) string {
	const gb = 1024 * 1024 * 1024
	const mb = 1024 * 1024
	if n >= gb {
		return fmt.Sprintf("%.1f GB", float64(n)/gb)
	}
	return fmt.Sprintf("%.1f MB", float64(n)/mb)
}

// Run shows the view until the user quits or ctx is cancelled.
func Run(ctx context.Context, title string, feeds ...Feed) error {
	app := NewApp(ctx, title, feeds...)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return app.Err()
		}
		return err
	}
	return app.Err()
}

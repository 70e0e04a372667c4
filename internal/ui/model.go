package ui

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/msle237-lees/homelab-monitor/internal/store"
	"github.com/msle237-lees/homelab-monitor/internal/supervisor"
)

// Options configure the dashboard TUI.
type Options struct {
	APIURL  string
	Refresh time.Duration
}

// OptionsFromEnv reads the environment the orchestrator injects into the UI
// child, falling back to the local API and a 2s refresh.
func OptionsFromEnv() Options {
	opts := Options{
		APIURL:  "http://127.0.0.1:8000",
		Refresh: 2 * time.Second,
	}
	if v := os.Getenv(supervisor.EnvAPIURL); v != "" {
		opts.APIURL = v
	}
	if v := os.Getenv(supervisor.EnvRefreshSeconds); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			opts.Refresh = time.Duration(secs * float64(time.Second))
		}
	}
	return opts
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
	filterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229"))
	staleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// tickMsg triggers a refresh cycle.
type tickMsg time.Time

// machinesMsg carries the result of one fetch.
type machinesMsg struct {
	machines []store.Machine
	err      error
	at       time.Time
}

// Model is the Bubble Tea model for the machines dashboard.
type Model struct {
	client  *Client
	refresh time.Duration

	machines   []store.Machine
	tbl        table.Model
	filter     string
	filtering  bool
	lastUpdate time.Time
	fetchErr   error
	width      int
	height     int
	quitting   bool
}

// NewModel builds the dashboard model. The first fetch happens in Init.
func NewModel(opts Options) Model {
	if opts.Refresh <= 0 {
		opts.Refresh = 2 * time.Second
	}
	cols := []table.Column{
		{Title: "ID", Width: 16},
		{Title: "Name", Width: 18},
		{Title: "Cores", Width: 5},
		{Title: "RAM", Width: 16},
		{Title: "Storage", Width: 18},
		{Title: "Temp", Width: 7},
		{Title: "Net", Width: 10},
		{Title: "Updated", Width: 9},
	}
	tbl := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	st := table.DefaultStyles()
	st.Header = st.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).BorderBottom(true)
	st.Selected = st.Selected.Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	tbl.SetStyles(st)

	return Model{
		client:  NewClient(opts.APIURL, 5*time.Second),
		refresh: opts.Refresh,
		tbl:     tbl,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.tickCmd())
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) fetchCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		machines, err := client.Machines(ctx)
		return machinesMsg{machines: machines, err: err, at: time.Now()}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h := msg.Height - 5 // title, filter line, status bar, borders
		if h < 3 {
			h = 3
		}
		m.tbl.SetHeight(h)
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchCmd(), m.tickCmd())

	case machinesMsg:
		m.fetchErr = msg.err
		if msg.err == nil {
			m.machines = msg.machines
			m.lastUpdate = msg.at
			m.rebuildRows()
		}
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			switch msg.Type {
			case tea.KeyEsc:
				m.filtering = false
				m.filter = ""
				m.rebuildRows()
			case tea.KeyEnter:
				m.filtering = false
			case tea.KeyBackspace:
				if len(m.filter) > 0 {
					m.filter = m.filter[:len(m.filter)-1]
					m.rebuildRows()
				}
			case tea.KeyRunes:
				m.filter += string(msg.Runes)
				m.rebuildRows()
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.fetchCmd()
		case "/":
			m.filtering = true
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.tbl, cmd = m.tbl.Update(msg)
	return m, cmd
}

func (m *Model) rebuildRows() {
	machines := make([]store.Machine, 0, len(m.machines))
	needle := strings.ToLower(m.filter)
	for _, mc := range m.machines {
		if needle != "" &&
			!strings.Contains(strings.ToLower(mc.Name), needle) &&
			!strings.Contains(strings.ToLower(mc.ID), needle) {
			continue
		}
		machines = append(machines, mc)
	}
	sort.Slice(machines, func(i, j int) bool { return machines[i].Name < machines[j].Name })

	rows := make([]table.Row, 0, len(machines))
	for _, mc := range machines {
		rows = append(rows, table.Row{
			mc.ID,
			mc.Name,
			strconv.Itoa(mc.CPUCores),
			usageCell(mc.RAMUsed, mc.RAMTotal),
			usageCell(mc.StorageUsed, mc.StorageTotal),
			tempCell(mc.CPUTemp),
			humanBps(mc.NetworkBps),
			ageCell(mc.UpdatedAt),
		})
	}
	m.tbl.SetRows(rows)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("homelab machines"))
	b.WriteString("\n")
	b.WriteString(m.tbl.View())
	b.WriteString("\n")

	if m.filtering {
		b.WriteString(filterStyle.Render("filter: "+m.filter+"▌") + "\n")
	} else if m.filter != "" {
		b.WriteString(filterStyle.Render("filter: "+m.filter) + "\n")
	}

	status := fmt.Sprintf("%d machines · refresh %s · r refresh · / filter · q quit",
		len(m.machines), m.refresh)
	if !m.lastUpdate.IsZero() {
		status = fmt.Sprintf("updated %s · %s", m.lastUpdate.Format("15:04:05"), status)
	}
	b.WriteString(statusStyle.Render(status))
	if m.fetchErr != nil {
		b.WriteString("\n" + errStyle.Render("fetch error: "+m.fetchErr.Error()))
	}
	return b.String()
}

// Run starts the TUI and blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func usageCell(used, total int64) string {
	if total <= 0 {
		return "-"
	}
	return fmt.Sprintf("%s/%s (%d%%)", humanBytes(used), humanBytes(total), used*100/total)
}

func tempCell(t *float64) string {
	if t == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f°C", *t)
}

func ageCell(at time.Time) string {
	if at.IsZero() {
		return "-"
	}
	age := time.Since(at).Round(time.Second)
	if age < 0 {
		age = 0
	}
	s := age.String()
	if age > time.Minute {
		return staleStyle.Render(s)
	}
	return s
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%c", float64(n)/float64(div), "KMGTPE"[exp])
}

func humanBps(n int64) string {
	return humanBytes(n) + "/s"
}

package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

var (
	accentColor = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	dimColor    = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}
	warnColor   = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}
	greenColor  = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	titleStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(dimColor)
	errStyle   = lipgloss.NewStyle().Foreground(warnColor)
	okStyle    = lipgloss.NewStyle().Foreground(greenColor)
	helpStyle  = lipgloss.NewStyle().Foreground(dimColor)
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type watchModel struct {
	stack   *stack
	sim     *simulator
	spinner spinner.Model
	qos     []qosRow
	width   int
	height  int
}

func newWatchModel(st *stack, sim *simulator) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accentColor)

	return watchModel{
		stack:   st,
		sim:     sim,
		spinner: s,
		qos:     qosRows(),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString("\n  ")
	b.WriteString(titleStyle.Render("arc"))
	b.WriteString(dimStyle.Render(" · proxy watch "))
	b.WriteString(m.spinner.View())
	b.WriteString("\n\n")

	b.WriteString(m.fleetView())
	b.WriteString("\n")
	b.WriteString(m.buildsView())
	b.WriteString("\n")
	b.WriteString(m.multicastView())
	b.WriteString("\n")
	b.WriteString(m.qosView())

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("  q: quit"))
	b.WriteString("\n")

	return b.String()
}

func (m watchModel) fleetView() string {
	return fmt.Sprintf("  %s  providers %d · next hops %d\n",
		titleStyle.Render("fleet"),
		m.stack.Registry.Count(),
		m.stack.Router.Count(),
	)
}

func (m watchModel) buildsView() string {
	var b strings.Builder
	b.WriteString("  " + titleStyle.Render("builds") + "\n")

	builds := m.sim.Builds()
	if len(builds) == 0 {
		b.WriteString(dimStyle.Render("    waiting for first arbitration...") + "\n")
		return b.String()
	}

	for _, rec := range builds {
		ts := dimStyle.Render(rec.At.Format("15:04:05"))
		strat := fmt.Sprintf("%-16s", rec.Strategy)
		if rec.Err != nil {
			b.WriteString(fmt.Sprintf("    %s %s %s\n", ts, strat,
				errStyle.Render(truncate.String(rec.Err.Error(), 48))))
			continue
		}
		line := okStyle.Render(truncate.String(rec.Provider, 32))
		if rec.Connection != "" {
			line += dimStyle.Render(" via " + rec.Connection)
		}
		b.WriteString(fmt.Sprintf("    %s %s %s\n", ts, strat, line))
	}
	return b.String()
}

func (m watchModel) multicastView() string {
	var b strings.Builder
	b.WriteString("  " + titleStyle.Render("multicast") + "\n")

	for _, group := range multicastGroups {
		receivers := m.sim.directory.GetReceivers(group)
		names := make([]string, 0, len(receivers))
		for id := range receivers {
			names = append(names, id)
		}
		sort.Strings(names)
		count := fmt.Sprintf("%-22s %2d", group, len(names))
		b.WriteString("    " + count)
		if len(names) > 0 {
			b.WriteString(dimStyle.Render("  " + truncate.String(strings.Join(names, " "), 40)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m watchModel) qosView() string {
	var b strings.Builder
	b.WriteString("  " + titleStyle.Render("subscription qos") + "\n")
	b.WriteString(dimStyle.Render("    variant                 on-change  min     periodic  alert") + "\n")

	for _, row := range m.qos {
		c := row.Classification
		b.WriteString(fmt.Sprintf("    %-23s %-10v %-7d %-9d %d\n",
			row.Name, c.IsOnChange, c.MinIntervalMs, c.PeriodicPublicationIntervalMs, c.AlertAfterIntervalMs))
	}
	return b.String()
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"shalyse/internal/backtest"
	"shalyse/internal/dashboard"
	"shalyse/internal/domain"
	"shalyse/internal/presets"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Form fields in tab order.
const (
	fieldTicker = iota
	fieldInitial
	fieldTopup
	fieldPeriod
	fieldHorizon
	fieldCount
)

var fieldLabels = [fieldCount]string{"ticker", "initial", "topup", "period", "horizon"}

const formHeight = fieldCount + 2

type simulatedMsg struct {
	res *backtest.Result
	err error
}

// runner is the subset of Backtester the model drives.
type runner interface {
	Run(ctx context.Context, ticker string, s domain.Scenario) (*backtest.Result, error)
}

type model struct {
	bt      runner
	presets *presets.Store
	logger  *slog.Logger

	inputs [fieldCount]textinput.Model
	focus  int

	preset  int // index into presets.Names, -1 for none
	running bool
	result  *backtest.Result
	err     error

	viewport      viewport.Model
	ready         bool
	width, height int
}

func initialModel(bt runner, ps *presets.Store, ticker string, s domain.Scenario, logger *slog.Logger) model {
	m := model{bt: bt, presets: ps, logger: logger, preset: -1}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 16
		ti.Width = 12
		m.inputs[i] = ti
	}
	m.inputs[fieldTicker].CharLimit = 10
	m.inputs[fieldTicker].SetValue(ticker)
	m.setScenario(s)
	m.inputs[fieldTicker].Focus()
	return m
}

func (m *model) setScenario(s domain.Scenario) {
	m.inputs[fieldInitial].SetValue(strconv.FormatFloat(s.Initial, 'f', -1, 64))
	m.inputs[fieldTopup].SetValue(strconv.FormatFloat(s.Topup, 'f', -1, 64))
	m.inputs[fieldPeriod].SetValue(strconv.Itoa(s.Period))
	m.inputs[fieldHorizon].SetValue(strconv.Itoa(s.Horizon))
}

// parseForm reads the ticker and scenario out of the form fields.
func parseForm(values [fieldCount]string) (string, domain.Scenario, error) {
	var s domain.Scenario
	ticker := strings.ToUpper(strings.TrimSpace(values[fieldTicker]))
	if ticker == "" {
		return "", s, fmt.Errorf("ticker is required")
	}

	var err error
	if s.Initial, err = strconv.ParseFloat(strings.TrimSpace(values[fieldInitial]), 64); err != nil {
		return "", s, fmt.Errorf("initial: %w", err)
	}
	if s.Topup, err = strconv.ParseFloat(strings.TrimSpace(values[fieldTopup]), 64); err != nil {
		return "", s, fmt.Errorf("topup: %w", err)
	}
	if s.Period, err = strconv.Atoi(strings.TrimSpace(values[fieldPeriod])); err != nil {
		return "", s, fmt.Errorf("period: %w", err)
	}
	if s.Horizon, err = strconv.Atoi(strings.TrimSpace(values[fieldHorizon])); err != nil {
		return "", s, fmt.Errorf("horizon: %w", err)
	}
	return ticker, s, s.Validate()
}

func (m model) values() [fieldCount]string {
	var v [fieldCount]string
	for i, in := range m.inputs {
		v[i] = in.Value()
	}
	return v
}

func (m model) simulateCmd() tea.Cmd {
	ticker, s, err := parseForm(m.values())
	if err != nil {
		return func() tea.Msg { return simulatedMsg{err: err} }
	}
	bt := m.bt
	return func() tea.Msg {
		res, err := bt.Run(context.Background(), ticker, s)
		return simulatedMsg{res: res, err: err}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.simulateCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "down":
			return m, m.moveFocus(1)
		case "shift+tab", "up":
			return m, m.moveFocus(-1)
		case "enter":
			m.running = true
			return m, m.simulateCmd()
		case "ctrl+p":
			m.nextPreset()
			m.running = true
			return m, m.simulateCmd()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := max(m.height-formHeight-2, 1)
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.viewport.SetContent(m.renderContent())
		return m, nil

	case simulatedMsg:
		m.running = false
		m.result, m.err = msg.res, msg.err
		if msg.err != nil {
			m.logger.Warn("simulation failed", "error", msg.err)
		}
		if m.ready {
			m.viewport.SetContent(m.renderContent())
			m.viewport.GotoTop()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *model) moveFocus(delta int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + fieldCount) % fieldCount
	return m.inputs[m.focus].Focus()
}

func (m *model) nextPreset() {
	if m.presets == nil {
		return
	}
	names := m.presets.Names()
	if len(names) == 0 {
		return
	}
	m.preset = (m.preset + 1) % len(names)
	if s, ok := m.presets.Get(names[m.preset]); ok {
		m.setScenario(s)
	}
}

func (m model) presetName() string {
	if m.presets == nil || m.preset < 0 {
		return ""
	}
	names := m.presets.Names()
	if m.preset >= len(names) {
		return ""
	}
	return names[m.preset]
}

func (m model) renderForm() string {
	var b strings.Builder
	for i, in := range m.inputs {
		fmt.Fprintf(&b, " %s %s\n", labelStyle.Render(fmt.Sprintf("%-8s", fieldLabels[i])), in.View())
	}
	return b.String()
}

func (m model) renderContent() string {
	if m.err != nil {
		return errStyle.Render(" " + m.err.Error())
	}
	if m.result == nil {
		return dimStyle.Render(" press enter to simulate")
	}

	rep := m.result.Report
	info := m.result.Instrument

	var b strings.Builder
	title := fmt.Sprintf("%s  %s", m.result.Ticker, info.ShortName)
	b.WriteString(dashboard.RenderSummary(title, rep.Summary))
	b.WriteString("\n")
	fmt.Fprintf(&b, " contributed %s over %s windows, history %s .. %s\n\n",
		dashboard.FormatAmount(rep.TotalContribution, info.Currency),
		dashboard.FormatInt(len(rep.Result)),
		info.FirstDate.Format("2006-01-02"),
		info.LastDate.Format("2006-01-02"))

	box := dashboard.BoxStats(rep.Result)
	quartile := func(v float64) string {
		return dashboard.FormatSigned(v) + " (" + dashboard.FormatPercent(v/rep.TotalContribution*100) + ")"
	}
	fmt.Fprintf(&b, " q1 %s  median %s  q3 %s\n\n", quartile(box.Q1), quartile(box.Median), quartile(box.Q3))

	width := max(m.width-24, 10)
	b.WriteString(dashboard.RenderHistogram(dashboard.Histogram(rep.Result, 20), width))
	return b.String()
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := " shalyse  periodic investment backtest"
	if name := m.presetName(); name != "" {
		header += "    preset: " + name
	}
	if m.running {
		header += "    running..."
	}

	footer := " enter run  tab next field  ctrl+p preset  pgup/dn scroll  esc quit"

	return titleStyle.Render(padOrTrunc(header, m.width)) + "\n" +
		m.renderForm() + "\n" +
		m.viewport.View() + "\n" +
		footStyle.Render(padOrTrunc(footer, m.width))
}

func padOrTrunc(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

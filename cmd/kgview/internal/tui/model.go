// Package tui is the terminal host: a bubbletea program that draws engine
// frames as characters and feeds mouse and keys back into the engine.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/recera/kgview/pkg/engine"
	"github.com/recera/kgview/pkg/interaction"
	"github.com/recera/kgview/pkg/kg"
	"github.com/recera/kgview/pkg/render"
	"github.com/recera/kgview/pkg/source"
)

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	headerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true)
)

// headerRows is the height of the header including its border.
const headerRows = 2

// footerRows is the height of the status and help lines.
const footerRows = 2

// Engine is what the model drives. *engine.Engine implements it.
type Engine interface {
	Subscribe() (<-chan *render.Frame, func())
	Frame() *render.Frame
	Dispatch(ev interaction.Event) bool
	Select(id string) bool
	Reset() bool
	Search(f source.Filter) bool
	Resize(width, height float64) bool
	Zoom(factor float64) bool
	Pan(dx, dy float64) bool
	Fit(padding float64) bool
	Stats(ctx context.Context) (kg.Stats, error)
}

var _ Engine = (*engine.Engine)(nil)

type frameMsg struct{ frame *render.Frame }

type framesClosedMsg struct{}

type statsMsg struct {
	stats kg.Stats
	err   error
}

// Model is the bubbletea model of the terminal host.
type Model struct {
	eng    Engine
	frames <-chan *render.Frame
	unsub  func()
	ctx    context.Context

	spinner spinner.Model
	input    textinput.Model
	canvas   *Canvas
	entities entitiesPanel

	frame   *render.Frame
	stats   *kg.Stats
	filter  source.Filter
	typeIdx int // 0 = all types, else kg.EntityTypes[typeIdx-1]

	width, height int
	ready         bool
	quitting      bool
}

// New creates a model driving eng. filter is the initial full-view filter;
// ctx bounds the statistics fetch.
func New(ctx context.Context, eng Engine, filter source.Filter) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "entity name"
	ti.Prompt = "/ "
	ti.CharLimit = 128
	ti.SetValue(filter.Name)

	m := Model{
		eng:      eng,
		ctx:      ctx,
		spinner:  s,
		input:    ti,
		canvas:   NewCanvas(0, 0),
		entities: newEntitiesPanel(),
		filter:   filter,
	}
	for i, t := range kg.EntityTypes {
		if t == filter.Type {
			m.typeIdx = i + 1
		}
	}
	m.frames, m.unsub = eng.Subscribe()
	m.frame = eng.Frame()
	m.entities.sync(m.frame)
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitFrame(m.frames),
		fetchStats(m.ctx, m.eng),
	)
}

func waitFrame(ch <-chan *render.Frame) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-ch
		if !ok {
			return framesClosedMsg{}
		}
		return frameMsg{frame: f}
	}
}

func fetchStats(ctx context.Context, eng Engine) tea.Cmd {
	return func() tea.Msg {
		st, err := eng.Stats(ctx)
		return statsMsg{stats: st, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if cols, _ := m.canvasSize(); m.entities.shown && msg.X >= cols {
			break
		}
		if ev, ok := pointerEvent(msg); ok {
			m.eng.Dispatch(ev)
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.input.Width = max(10, msg.Width/3)
		m.relayout()

	case frameMsg:
		m.frame = msg.frame
		m.entities.sync(msg.frame)
		cmds = append(cmds, waitFrame(m.frames))

	case framesClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case statsMsg:
		if msg.err == nil {
			st := msg.stats
			m.stats = &st
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// Pan step in scene units per arrow key.
const panStep = 40

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.input.Focused() {
		switch msg.Type {
		case tea.KeyEnter:
			m.input.Blur()
			m.filter.Name = m.input.Value()
			m.eng.Search(m.filter)
			return m, fetchStats(m.ctx, m.eng)
		case tea.KeyEsc:
			m.input.Blur()
			m.input.SetValue(m.filter.Name)
			return m, nil
		case tea.KeyCtrlC:
			return m.quit()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	if m.entities.shown {
		switch msg.String() {
		case "enter":
			if id, ok := m.entities.selected(); ok {
				m.eng.Select(id)
			}
			return m, nil
		case "esc", "e":
			m.entities.shown = false
			m.relayout()
			return m, nil
		case "up", "down", "k", "j", "pgup", "pgdown", "home", "end":
			var cmd tea.Cmd
			m.entities.table, cmd = m.entities.table.Update(msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m.quit()
	case "e":
		m.entities.shown = true
		m.relayout()
	case "/":
		cmd := m.input.Focus()
		return m, cmd
	case "t":
		m.typeIdx = (m.typeIdx + 1) % (len(kg.EntityTypes) + 1)
		m.filter.Type = ""
		if m.typeIdx > 0 {
			m.filter.Type = kg.EntityTypes[m.typeIdx-1]
		}
		m.eng.Search(m.filter)
	case "r":
		m.eng.Reset()
	case "f":
		m.eng.Fit(2 * CellHeight)
	case "+", "=":
		m.eng.Zoom(1.25)
	case "-", "_":
		m.eng.Zoom(0.8)
	case "up":
		m.eng.Pan(0, panStep)
	case "down":
		m.eng.Pan(0, -panStep)
	case "left":
		m.eng.Pan(panStep, 0)
	case "right":
		m.eng.Pan(-panStep, 0)
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.unsub != nil {
		m.unsub()
	}
	return m, tea.Quit
}

// canvasSize is the graph area in cells.
func (m Model) canvasSize() (int, int) {
	w := m.width
	if m.entities.shown {
		w -= entitiesWidth
	}
	return max(1, w), max(1, m.height-headerRows-footerRows)
}

// relayout sizes the canvas and the entities panel to the window and tells
// the engine the new graph area.
func (m *Model) relayout() {
	if !m.ready {
		return
	}
	cols, rows := m.canvasSize()
	m.canvas = NewCanvas(cols, rows)
	m.entities.table.SetHeight(rows)
	m.eng.Resize(float64(cols)*CellWidth, float64(rows)*CellHeight)
}

// pointerEvent maps a mouse message to an engine event in scene units.
func pointerEvent(msg tea.MouseMsg) (interaction.Event, bool) {
	x, y := ToScene(msg.X, msg.Y-headerRows)
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		return interaction.Event{Kind: interaction.Wheel, X: x, Y: y, DeltaY: -100}, true
	case msg.Button == tea.MouseButtonWheelDown:
		return interaction.Event{Kind: interaction.Wheel, X: x, Y: y, DeltaY: 100}, true
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		return interaction.Event{Kind: interaction.Down, X: x, Y: y}, true
	case msg.Action == tea.MouseActionRelease:
		return interaction.Event{Kind: interaction.Up, X: x, Y: y}, true
	case msg.Action == tea.MouseActionMotion:
		return interaction.Event{Kind: interaction.Move, X: x, Y: y}, true
	}
	return interaction.Event{}, false
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return m.spinner.View() + " Loading knowledge graph..."
	}

	m.canvas.Draw(m.frame)
	graph := m.canvas.Render()
	if m.entities.shown {
		graph = lipgloss.JoinHorizontal(lipgloss.Top, graph, m.entities.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Width(m.width).Render(m.header()),
		graph,
		m.status(),
		subtleStyle.Render(helpLine),
	)
}

const helpLine = "click: explore  drag: move  wheel/+/-: zoom  arrows: pan  /: search  t: type  e: entities  r: reset  f: fit  q: quit"

func (m Model) header() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Knowledge Graph"))
	if m.input.Focused() {
		b.WriteString("  " + m.input.View())
	} else if m.filter.Name != "" {
		b.WriteString("  " + infoStyle.Render("name: "+m.filter.Name))
	}
	typ := "all types"
	if m.filter.Type != "" {
		typ = string(m.filter.Type)
	}
	b.WriteString("  " + infoStyle.Render(typ))
	if m.stats != nil {
		b.WriteString("  " + subtleStyle.Render(StatsLine(*m.stats)))
	}
	return b.String()
}

func (m Model) status() string {
	f := m.frame
	if f == nil {
		return ""
	}
	parts := []string{statusStyle.Render(f.Status.Mode)}
	parts = append(parts, fmt.Sprintf("%d nodes  %d edges", len(f.Nodes), len(f.Edges)))
	if f.Status.Loading {
		parts = append(parts, m.spinner.View()+" loading")
	}
	if f.Status.Err != "" {
		parts = append(parts, errorStyle.Render("error: "+f.Status.Err))
	}
	for _, n := range f.Nodes {
		if n.Hover {
			parts = append(parts, infoStyle.Render(strings.ReplaceAll(n.Tooltip, "\n", "  ")))
			break
		}
	}
	return strings.Join(parts, "  |  ")
}

// StatsLine summarizes graph statistics on one line, types by count.
func StatsLine(st kg.Stats) string {
	type kv struct {
		k string
		v int
	}
	counts := make([]kv, 0, len(st.EntityTypeCounts))
	for k, v := range st.EntityTypeCounts {
		counts = append(counts, kv{k, v})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].v != counts[j].v {
			return counts[i].v > counts[j].v
		}
		return counts[i].k < counts[j].k
	})
	parts := []string{fmt.Sprintf("%d entities, %d relationships", st.TotalEntities, st.TotalRelationships)}
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s %d", c.k, c.v))
	}
	return strings.Join(parts, " · ")
}

// Run starts the program on the terminal and blocks until it exits.
func Run(ctx context.Context, eng Engine, filter source.Filter) error {
	p := tea.NewProgram(New(ctx, eng, filter),
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}

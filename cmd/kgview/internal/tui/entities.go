package tui

import (
	"slices"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/recera/kgview/pkg/render"
)

// entitiesWidth is the panel width in cells including its left border.
const entitiesWidth = 44

var panelStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.NormalBorder()).
	BorderLeft(true)

// entitiesPanel lists the visible entities. Rows follow frame node order
// and ids holds the entity id of each row.
type entitiesPanel struct {
	table table.Model
	ids   []string
	shown bool
}

func newEntitiesPanel() entitiesPanel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Name", Width: 20},
			{Title: "Type", Width: 12},
			{Title: "Conf", Width: 5},
		}),
		table.WithFocused(true),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(s)
	return entitiesPanel{table: t}
}

// sync rebuilds the rows when the set of visible entities changed.
func (p *entitiesPanel) sync(f *render.Frame) {
	if f == nil {
		return
	}
	ids := make([]string, len(f.Nodes))
	for i, n := range f.Nodes {
		ids[i] = n.ID
	}
	if slices.Equal(ids, p.ids) {
		return
	}

	rows := make([]table.Row, len(f.Nodes))
	for i, n := range f.Nodes {
		conf := n.Confidence
		if conf == "" {
			conf = "-"
		}
		rows[i] = table.Row{n.Label, string(n.Type), conf}
	}
	p.ids = ids
	p.table.SetRows(rows)
	if p.table.Cursor() >= len(rows) {
		p.table.SetCursor(max(0, len(rows)-1))
	}
}

// selected returns the entity id under the cursor.
func (p entitiesPanel) selected() (string, bool) {
	i := p.table.Cursor()
	if i < 0 || i >= len(p.ids) {
		return "", false
	}
	return p.ids[i], true
}

func (p entitiesPanel) View() string {
	return panelStyle.Render(p.table.View())
}

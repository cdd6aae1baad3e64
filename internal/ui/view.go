package ui

import (
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mehtakaran9/gridcall/internal/grid"
	"github.com/mehtakaran9/gridcall/internal/media"
	"github.com/mehtakaran9/gridcall/internal/room"
)

const maxNotices = 3

// RoomView renders the call arena in the terminal and feeds arrow-key moves
// back to the controller. It is the TileBinder the room controller paints
// through; binder calls arrive from the controller loop while bubbletea
// renders on its own goroutine, so shared state sits behind a mutex.
type RoomView struct {
	mu        sync.Mutex
	shape     grid.Shape
	local     grid.Coord
	tiles     map[grid.Coord]grid.Level
	occupants map[grid.Coord]string
	live      map[grid.Coord]bool
	notices   []string

	ctrl *room.Controller
}

func NewRoomView(shape grid.Shape) *RoomView {
	return &RoomView{
		shape:     shape,
		tiles:     make(map[grid.Coord]grid.Level),
		occupants: make(map[grid.Coord]string),
		live:      make(map[grid.Coord]bool),
	}
}

// SetController attaches the controller once the room has been entered.
func (v *RoomView) SetController(c *room.Controller) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ctrl = c
}

// Run blocks until the user leaves the room.
func (v *RoomView) Run() error {
	p := tea.NewProgram(&roomModel{view: v}, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// BindLocal implements room.TileBinder.
func (v *RoomView) BindLocal(c grid.Coord) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.occupants, v.local)
	v.local = c
}

// BindStream implements room.TileBinder.
func (v *RoomView) BindStream(c grid.Coord, participantID string, s *media.RemoteStream) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.occupants[c] = participantID
	v.live[c] = true
}

// UnbindStream implements room.TileBinder.
func (v *RoomView) UnbindStream(c grid.Coord) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.occupants, c)
	delete(v.live, c)
}

// ApplyProximity implements room.TileBinder.
func (v *RoomView) ApplyProximity(a grid.Assignment) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tiles = a.Tiles
}

// Notify implements room.TileBinder.
func (v *RoomView) Notify(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, text)
	if len(v.notices) > maxNotices {
		v.notices = v.notices[len(v.notices)-maxNotices:]
	}
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// roomModel is the bubbletea model wrapping a RoomView.
type roomModel struct {
	view     *RoomView
	quitting bool
}

func (m *roomModel) Init() tea.Cmd {
	return tick()
}

func (m *roomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			m.view.leave()
			return m, tea.Quit
		case "up":
			m.view.move(-1, 0)
		case "down":
			m.view.move(1, 0)
		case "left":
			m.view.move(0, -1)
		case "right":
			m.view.move(0, 1)
		}
	}
	return m, nil
}

func (m *roomModel) View() string {
	if m.quitting {
		return ""
	}
	return m.view.render()
}

// move relocates the local tile by one step, surfacing rejections as notices.
func (v *RoomView) move(dr, dc int) {
	v.mu.Lock()
	ctrl := v.ctrl
	target := grid.Coord{Row: v.local.Row + dr, Col: v.local.Col + dc}
	v.mu.Unlock()
	if ctrl == nil {
		return
	}
	if err := ctrl.MoveTile(target); err != nil {
		v.Notify(err.Error())
	}
}

func (v *RoomView) leave() {
	v.mu.Lock()
	ctrl := v.ctrl
	v.mu.Unlock()
	if ctrl == nil {
		return
	}
	if err := ctrl.Leave(); err != nil {
		v.Notify(err.Error())
	}
}

func (v *RoomView) render() string {
	// Snapshot blocks on the controller loop, and the loop calls binder
	// methods that take v.mu, so the snapshot must be taken before locking.
	v.mu.Lock()
	ctrl := v.ctrl
	v.mu.Unlock()
	var snap room.Snapshot
	if ctrl != nil {
		snap = ctrl.Snapshot()
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// Participants whose media has not arrived yet still occupy a tile.
	occupied := make(map[grid.Coord]bool, len(snap.Coords))
	for id, c := range snap.Coords {
		if id != snap.LocalID {
			occupied[c] = true
		}
	}

	rows := make([]string, 0, v.shape.Rows+2)
	rows = append(rows, TitleStyle.Render(fmt.Sprintf("room %q - %s", snap.RoomName, snap.LocalID)))

	for r := 0; r < v.shape.Rows; r++ {
		cells := make([]string, 0, v.shape.Cols)
		for col := 0; col < v.shape.Cols; col++ {
			c := grid.Coord{Row: r, Col: col}
			cells = append(cells, v.renderCell(c, occupied[c]))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}

	for _, n := range v.notices {
		rows = append(rows, StatusBarStyle.Render(n))
	}
	rows = append(rows, MutedStyle.Render("arrows move · q leaves"))

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (v *RoomView) renderCell(c grid.Coord, occupied bool) string {
	level, ok := v.tiles[c]
	if !ok {
		level = grid.LevelFor(v.local, c)
	}

	style := lipgloss.NewStyle().
		Width(3).
		Align(lipgloss.Center).
		Foreground(lipgloss.Color(level.Color))

	switch {
	case c == v.local:
		return style.Foreground(Primary).Bold(true).Render("@")
	case v.live[c]:
		return style.Render(IconUser)
	case occupied || v.occupants[c] != "":
		return style.Render("o")
	}
	return style.Render("·")
}

package ui

import (
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/mehtakaran9/gridcall/internal/room"
)

// RenderRoster prints the current participants, their tiles and their audio
// volume relative to the local participant.
func RenderRoster(snap room.Snapshot) {
	ids := make([]string, 0, len(snap.Coords))
	for id := range snap.Coords {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Name", "Tile", "Volume"})
	for _, id := range ids {
		name := snap.Names[id]
		if id == snap.LocalID {
			name += " (you)"
		}
		coord := snap.Coords[id]
		t.AppendRow(table.Row{
			id,
			name,
			fmt.Sprintf("(%d,%d)", coord.Row, coord.Col),
			fmt.Sprintf("%.1f", snap.Volumes[id]),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

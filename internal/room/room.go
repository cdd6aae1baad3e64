// Package room orchestrates one participant's membership in a call: creating
// or joining the room record, spawning a peer session per remote participant,
// reacting to join/leave/move notifications from the shared store, and
// recomputing proximity whenever any tile assignment changes.
package room

import (
	"errors"

	"github.com/mehtakaran9/gridcall/internal/grid"
	"github.com/mehtakaran9/gridcall/internal/media"
	"github.com/mehtakaran9/gridcall/internal/session"
)

var (
	ErrRoomExists   = errors.New("room name already registered")
	ErrRoomNotFound = errors.New("no room registered under that name")
	ErrGridFull     = errors.New("no free tile in the grid")
	ErrTileOccupied = errors.New("tile is occupied")
	ErrOutOfBounds  = errors.New("tile is outside the grid")
	ErrLeft         = errors.New("room already left")
)

// TileBinder is the rendering collaborator. The controller only ever asks it
// to place a stream on a tile, vacate a tile, and repaint volumes/colors; how
// tiles are drawn is not the controller's concern. Calls arrive from the
// controller loop goroutine, never concurrently.
type TileBinder interface {
	// BindLocal marks the local participant's own tile.
	BindLocal(c grid.Coord)

	// BindStream places a remote participant's media on a tile.
	BindStream(c grid.Coord, participantID string, s *media.RemoteStream)

	// UnbindStream vacates a tile.
	UnbindStream(c grid.Coord)

	// ApplyProximity repaints the whole grid after a coordinate change.
	ApplyProximity(a grid.Assignment)

	// Notify surfaces a non-blocking presence message to the user.
	Notify(text string)
}

// ConnFactory builds the peer transport for one new session.
type ConnFactory func(remoteID string) (session.Conn, error)

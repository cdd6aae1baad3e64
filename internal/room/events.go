package room

import (
	"github.com/mehtakaran9/gridcall/internal/grid"
	"github.com/mehtakaran9/gridcall/internal/media"
	"github.com/mehtakaran9/gridcall/internal/signaling"
)

// event is the union of everything the controller loop reacts to. Store
// watchers, session callbacks and user commands all funnel through one
// channel so roster state is only ever touched by the loop goroutine.
type event interface{}

type roomChangedEvent struct {
	rec signaling.RoomRecord
}

type namesChangedEvent struct {
	names map[string]string
}

type coordChangedEvent struct {
	id    string
	coord grid.Coord
}

type offerReceivedEvent struct {
	remoteID string
}

type sessionClosedEvent struct {
	remoteID string
}

type streamEvent struct {
	remoteID string
	stream   *media.RemoteStream
}

type moveCmd struct {
	to    grid.Coord
	reply chan error
}

type leaveCmd struct {
	reply chan error
}

type snapshotCmd struct {
	reply chan Snapshot
}

// Snapshot is a copy of the roster for rendering.
type Snapshot struct {
	RoomID   string
	RoomName string
	LocalID  string
	Names    map[string]string
	Coords   map[string]grid.Coord
	Volumes  map[string]float64
}

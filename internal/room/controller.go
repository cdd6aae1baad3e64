package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mehtakaran9/gridcall/internal/grid"
	"github.com/mehtakaran9/gridcall/internal/media"
	"github.com/mehtakaran9/gridcall/internal/session"
	"github.com/mehtakaran9/gridcall/internal/signaling"
	"github.com/mehtakaran9/gridcall/internal/store"
)

// Deps wires a controller to its collaborators.
type Deps struct {
	Store   store.Store
	Shape   grid.Shape
	Binder  TileBinder
	NewConn ConnFactory
}

// peerState is everything the controller tracks per remote participant.
type peerState struct {
	sess    *session.Session
	stream  *media.RemoteStream
	key     signaling.SessionKey
	hasKey  bool
	cancels []store.CancelFunc
}

// Controller owns one participant's room membership. All roster and
// coordinate state belongs to the run loop goroutine; external callbacks and
// user commands are posted onto the events channel and handled one at a time.
type Controller struct {
	deps    Deps
	channel *signaling.Channel

	roomID   string
	roomName string
	localID  string

	events chan event
	done   chan struct{}

	// Loop-owned state below; never touched outside run().
	peers        map[string]*peerState
	coords       map[string]grid.Coord
	names        map[string]string
	pendingMoves map[string]grid.Coord
	cancels      []store.CancelFunc
}

// Create registers a new room under name and enters it as USER0 at (0,0).
// Fails with ErrRoomExists if the name is already registered; nothing is
// mutated in that case.
func Create(ctx context.Context, deps Deps, name, displayName string) (*Controller, error) {
	dir, err := readDirectory(ctx, deps.Store)
	if err != nil {
		return nil, err
	}
	if _, taken := dir.RoomNameToID[name]; taken {
		return nil, ErrRoomExists
	}

	roomID := fmt.Sprintf("ROOM%d", dir.NextRoomNum)
	dir.NextRoomNum++
	dir.RoomNameToID[name] = roomID
	if err := writeDirectory(ctx, deps.Store, dir); err != nil {
		return nil, err
	}

	c := newController(deps, roomID, name, "USER0")

	rec := signaling.RoomRecord{RoomName: name, NextUserNum: 1, UserIDs: []string{c.localID}}
	doc, err := store.Encode(rec)
	if err != nil {
		return nil, err
	}
	if err := deps.Store.Create(ctx, signaling.RoomPath(roomID), doc); err != nil {
		if errors.Is(err, store.ErrExists) {
			return nil, ErrRoomExists
		}
		return nil, err
	}

	if err := c.publishPresence(ctx, displayName, grid.Coord{Row: 0, Col: 0}); err != nil {
		return nil, err
	}

	if err := c.start(ctx); err != nil {
		return nil, err
	}
	c.deps.Binder.Notify(fmt.Sprintf("created room %q", name))
	return c, nil
}

// Join enters an existing room: allocates the next participant number and the
// first free tile, publishes presence, and initiates a peer session toward
// every participant already present. Fails with ErrRoomNotFound when the name
// is unregistered and ErrGridFull when no tile is free; nothing is mutated in
// either case.
func Join(ctx context.Context, deps Deps, name, displayName string) (*Controller, error) {
	dir, err := readDirectory(ctx, deps.Store)
	if err != nil {
		return nil, err
	}
	roomID, ok := dir.RoomNameToID[name]
	if !ok {
		return nil, ErrRoomNotFound
	}

	rec, err := readRoom(ctx, deps.Store, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	// Occupancy derives from the per-participant coordinate records; there is
	// no separate availability matrix to fall out of sync with.
	occupied := make(map[grid.Coord]bool)
	existingCoords := make(map[string]grid.Coord)
	for _, id := range rec.UserIDs {
		coord, err := readCoord(ctx, deps.Store, roomID, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		occupied[coord] = true
		existingCoords[id] = coord
	}
	tile, ok := grid.Allocate(occupied, deps.Shape)
	if !ok {
		return nil, ErrGridFull
	}

	localID := fmt.Sprintf("USER%d", rec.NextUserNum)
	rec.NextUserNum++
	rec.UserIDs = append(rec.UserIDs, localID)
	doc, err := store.Encode(rec)
	if err != nil {
		return nil, err
	}
	if err := deps.Store.Update(ctx, signaling.RoomPath(roomID), doc); err != nil {
		return nil, err
	}

	c := newController(deps, roomID, name, localID)
	if err := c.publishPresence(ctx, displayName, tile); err != nil {
		return nil, err
	}

	for id, coord := range existingCoords {
		c.coords[id] = coord
	}
	for _, id := range rec.UserIDs {
		if id == localID {
			continue
		}
		c.peers[id] = &peerState{}
	}

	// The joiner is the initiator toward everyone already in the room. All of
	// this happens before the run loop starts so loop-owned state is never
	// touched from two goroutines.
	for _, id := range rec.UserIDs {
		if id == localID {
			continue
		}
		c.initiateSession(ctx, id)
		c.watchPeer(ctx, id)
	}

	if err := c.start(ctx); err != nil {
		return nil, err
	}
	c.deps.Binder.Notify(fmt.Sprintf("joined room %q", name))
	return c, nil
}

func newController(deps Deps, roomID, roomName, localID string) *Controller {
	return &Controller{
		deps:         deps,
		channel:      signaling.NewChannel(deps.Store),
		roomID:       roomID,
		roomName:     roomName,
		localID:      localID,
		events:       make(chan event, 256),
		done:         make(chan struct{}),
		peers:        make(map[string]*peerState),
		coords:       make(map[string]grid.Coord),
		names:        make(map[string]string),
		pendingMoves: make(map[string]grid.Coord),
	}
}

// publishPresence writes the local display name and coordinate record.
func (c *Controller) publishPresence(ctx context.Context, displayName string, tile grid.Coord) error {
	namesPath := signaling.UserNamesPath(c.roomID)
	fields := store.Document{c.localID: displayName}
	if err := c.deps.Store.Update(ctx, namesPath, fields); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := c.deps.Store.Set(ctx, namesPath, fields); err != nil {
			return err
		}
	}

	if err := c.writeCoord(ctx, tile); err != nil {
		return err
	}
	c.names[c.localID] = displayName
	c.coords[c.localID] = tile
	return nil
}

// start registers the room-level watchers and launches the run loop.
func (c *Controller) start(ctx context.Context) error {
	cancelRoom, err := c.deps.Store.Watch(ctx, signaling.RoomPath(c.roomID), func(doc store.Document) {
		var rec signaling.RoomRecord
		if err := store.Decode(doc, &rec); err != nil {
			slog.Warn("discarding malformed room record", "room", c.roomID, "err", err)
			return
		}
		c.post(roomChangedEvent{rec: rec})
	})
	if err != nil {
		return err
	}
	c.cancels = append(c.cancels, cancelRoom)

	cancelNames, err := c.deps.Store.Watch(ctx, signaling.UserNamesPath(c.roomID), func(doc store.Document) {
		names := make(map[string]string)
		if err := store.Decode(doc, &names); err != nil {
			slog.Warn("discarding malformed name registry", "room", c.roomID, "err", err)
			return
		}
		c.post(namesChangedEvent{names: names})
	})
	if err != nil {
		return err
	}
	c.cancels = append(c.cancels, cancelNames)

	c.deps.Binder.BindLocal(c.coords[c.localID])
	c.recompute()

	go c.run(ctx)
	return nil
}

// post delivers an event to the loop unless the room has been left.
func (c *Controller) post(e event) {
	select {
	case c.events <- e:
	case <-c.done:
	}
}

// run is the controller loop: the only goroutine that mutates roster state.
func (c *Controller) run(ctx context.Context) {
	for e := range c.events {
		switch ev := e.(type) {
		case roomChangedEvent:
			c.handleRoomChanged(ctx, ev.rec)
		case namesChangedEvent:
			c.names = ev.names
		case coordChangedEvent:
			c.handleMoved(ev.id, ev.coord)
		case offerReceivedEvent:
			c.handleOfferReceived(ctx, ev.remoteID)
		case sessionClosedEvent:
			c.handlePeerGone(ctx, ev.remoteID, true)
		case streamEvent:
			c.handleStream(ev.remoteID, ev.stream)
		case moveCmd:
			ev.reply <- c.handleMoveLocal(ctx, ev.to)
		case snapshotCmd:
			ev.reply <- c.snapshot()
		case leaveCmd:
			ev.reply <- c.handleLeave(ctx)
			close(c.done)
			return
		}
	}
}

// MoveTile relocates the local participant. The target must be in bounds and
// unoccupied; rejected moves have no side effects.
func (c *Controller) MoveTile(to grid.Coord) error {
	reply := make(chan error, 1)
	if !c.post2(moveCmd{to: to, reply: reply}) {
		return ErrLeft
	}
	return <-reply
}

// Leave tears down every peer session, removes local presence, and retires
// the room when the departing participant was the last one.
func (c *Controller) Leave() error {
	reply := make(chan error, 1)
	if !c.post2(leaveCmd{reply: reply}) {
		return ErrLeft
	}
	return <-reply
}

// Snapshot returns a copy of the roster for rendering.
func (c *Controller) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	if !c.post2(snapshotCmd{reply: reply}) {
		return Snapshot{RoomID: c.roomID, RoomName: c.roomName, LocalID: c.localID}
	}
	return <-reply
}

// RoomID returns the allocated room identifier.
func (c *Controller) RoomID() string { return c.roomID }

// LocalID returns the local participant identifier.
func (c *Controller) LocalID() string { return c.localID }

// post2 is post with a delivered/rejected result, for commands that expect a
// reply.
func (c *Controller) post2(e event) bool {
	select {
	case c.events <- e:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) handleRoomChanged(ctx context.Context, rec signaling.RoomRecord) {
	present := make(map[string]bool, len(rec.UserIDs))
	for _, id := range rec.UserIDs {
		present[id] = true
		if id == c.localID {
			continue
		}
		if _, known := c.peers[id]; known {
			continue
		}
		c.peers[id] = &peerState{}
		c.watchPeer(ctx, id)
		if userNum(id) > userNum(c.localID) {
			// Later joiners initiate toward us; wait for their offer.
			c.watchInboundOffer(ctx, id)
		}
		if coord, ok := c.pendingMoves[id]; ok {
			delete(c.pendingMoves, id)
			c.handleMoved(id, coord)
		}
		c.deps.Binder.Notify(fmt.Sprintf("%s joined the call", c.displayName(id)))
	}

	for id := range c.peers {
		if !present[id] {
			c.handlePeerGone(ctx, id, false)
		}
	}
}

// handleMoved processes a coordinate notification for any participant. Moves
// for participants not yet seen in the roster are buffered until their join
// is processed; join and move notifications travel on independent documents
// and may arrive in either order.
func (c *Controller) handleMoved(id string, coord grid.Coord) {
	if id == c.localID {
		return
	}
	peer, known := c.peers[id]
	if !known {
		c.pendingMoves[id] = coord
		return
	}

	prev, had := c.coords[id]
	if had && prev == coord {
		return
	}
	c.coords[id] = coord
	if had {
		c.deps.Binder.UnbindStream(prev)
	}
	if peer.stream != nil {
		c.deps.Binder.BindStream(coord, id, peer.stream)
	}

	// A remote move never changes the local tile, but every relative distance
	// shifts, so the whole grid is recomputed regardless.
	c.recompute()
}

func (c *Controller) handleMoveLocal(ctx context.Context, to grid.Coord) error {
	if !c.deps.Shape.Contains(to) {
		return ErrOutOfBounds
	}
	occupied := make(map[grid.Coord]bool, len(c.coords))
	for id, coord := range c.coords {
		if id == c.localID {
			continue
		}
		occupied[coord] = true
	}
	if !grid.IsAvailable(to, occupied) {
		return ErrTileOccupied
	}
	if err := c.writeCoord(ctx, to); err != nil {
		return err
	}
	c.coords[c.localID] = to
	c.deps.Binder.BindLocal(to)
	c.recompute()
	return nil
}

func (c *Controller) handleOfferReceived(ctx context.Context, remoteID string) {
	peer, known := c.peers[remoteID]
	if !known || peer.sess != nil {
		return
	}
	conn, err := c.deps.NewConn(remoteID)
	if err != nil {
		slog.Error("building transport for joiner", "remote", remoteID, "err", err)
		return
	}
	key := signaling.SessionKey{RoomID: c.roomID, From: remoteID, To: c.localID}
	sess, err := session.Respond(ctx, session.Config{
		Key:      key,
		LocalID:  c.localID,
		RemoteID: remoteID,
		Conn:     conn,
		Channel:  c.channel,
		OnClosed: func(id string) { c.post(sessionClosedEvent{remoteID: id}) },
		OnStream: func(id string, s *media.RemoteStream) { c.post(streamEvent{remoteID: id, stream: s}) },
	})
	if err != nil {
		slog.Error("answering joiner", "remote", remoteID, "err", err)
		c.deps.Binder.Notify(fmt.Sprintf("failed to connect to %s", c.displayName(remoteID)))
		return
	}
	peer.sess = sess
	peer.key = key
	peer.hasKey = true
}

// initiateSession runs the caller path toward one already-present
// participant. A failed session is reported but does not abort the join.
func (c *Controller) initiateSession(ctx context.Context, remoteID string) {
	peer := c.peers[remoteID]
	conn, err := c.deps.NewConn(remoteID)
	if err != nil {
		slog.Error("building transport", "remote", remoteID, "err", err)
		return
	}
	key := signaling.SessionKey{RoomID: c.roomID, From: c.localID, To: remoteID}
	sess, err := session.Initiate(ctx, session.Config{
		Key:      key,
		LocalID:  c.localID,
		RemoteID: remoteID,
		Conn:     conn,
		Channel:  c.channel,
		OnClosed: func(id string) { c.post(sessionClosedEvent{remoteID: id}) },
		OnStream: func(id string, s *media.RemoteStream) { c.post(streamEvent{remoteID: id, stream: s}) },
	})
	if err != nil {
		slog.Error("offering to participant", "remote", remoteID, "err", err)
		c.deps.Binder.Notify(fmt.Sprintf("failed to connect to %s", c.displayName(remoteID)))
		return
	}
	peer.sess = sess
	peer.key = key
	peer.hasKey = true
}

func (c *Controller) handleStream(remoteID string, s *media.RemoteStream) {
	peer, known := c.peers[remoteID]
	if !known {
		return
	}
	peer.stream = s
	if coord, ok := c.coords[remoteID]; ok {
		c.deps.Binder.BindStream(coord, remoteID, s)
	}
	c.recompute()
}

// handlePeerGone handles both a graceful departure (roster removal) and a
// dropped transport identically. With fromTransport set, the departed id is
// also removed from the shared roster on behalf of the vanished peer.
func (c *Controller) handlePeerGone(ctx context.Context, remoteID string, fromTransport bool) {
	peer, known := c.peers[remoteID]
	if !known {
		return
	}
	delete(c.peers, remoteID)

	if peer.sess != nil {
		peer.sess.Close()
	}
	for _, cancel := range peer.cancels {
		cancel()
	}
	if coord, ok := c.coords[remoteID]; ok {
		c.deps.Binder.UnbindStream(coord)
		delete(c.coords, remoteID)
	}
	if peer.hasKey {
		if err := c.channel.Clear(ctx, peer.key); err != nil {
			slog.Debug("clearing signaling record", "remote", remoteID, "err", err)
		}
	}

	if fromTransport {
		c.removeFromRoster(ctx, remoteID)
	}

	c.deps.Binder.Notify(fmt.Sprintf("%s left the call", c.displayName(remoteID)))
	delete(c.names, remoteID)
	c.recompute()
}

func (c *Controller) handleLeave(ctx context.Context) error {
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil

	for id, peer := range c.peers {
		if peer.sess != nil {
			peer.sess.Close()
		}
		for _, cancel := range peer.cancels {
			cancel()
		}
		if peer.hasKey {
			if err := c.channel.Clear(ctx, peer.key); err != nil {
				slog.Debug("clearing signaling record", "remote", id, "err", err)
			}
		}
		if coord, ok := c.coords[id]; ok {
			c.deps.Binder.UnbindStream(coord)
		}
	}
	c.peers = map[string]*peerState{}

	if err := c.deps.Store.Delete(ctx, signaling.CoordPath(c.roomID, c.localID)); err != nil {
		return err
	}
	c.removeName(ctx)

	rec, err := readRoom(ctx, c.deps.Store, c.roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	rec.UserIDs = remove(rec.UserIDs, c.localID)

	if len(rec.UserIDs) == 0 {
		return c.retireRoom(ctx)
	}

	doc, err := store.Encode(rec)
	if err != nil {
		return err
	}
	return c.deps.Store.Update(ctx, signaling.RoomPath(c.roomID), doc)
}

// retireRoom deletes the room record and frees its name for reuse.
func (c *Controller) retireRoom(ctx context.Context) error {
	if err := c.deps.Store.Delete(ctx, signaling.RoomPath(c.roomID)); err != nil {
		return err
	}
	if err := c.deps.Store.Delete(ctx, signaling.UserNamesPath(c.roomID)); err != nil {
		return err
	}
	dir, err := readDirectory(ctx, c.deps.Store)
	if err != nil {
		return err
	}
	delete(dir.RoomNameToID, c.roomName)
	return writeDirectory(ctx, c.deps.Store, dir)
}

// watchPeer subscribes to one participant's coordinate record.
func (c *Controller) watchPeer(ctx context.Context, id string) {
	peer := c.peers[id]
	cancel, err := c.deps.Store.Watch(ctx, signaling.CoordPath(c.roomID, id), func(doc store.Document) {
		var rec signaling.CoordRecord
		if err := store.Decode(doc, &rec); err != nil {
			slog.Warn("discarding malformed coordinate record", "participant", id, "err", err)
			return
		}
		c.post(coordChangedEvent{id: id, coord: grid.Coord{Row: rec.Row, Col: rec.Col}})
	})
	if err != nil {
		slog.Error("watching coordinates", "participant", id, "err", err)
		return
	}
	peer.cancels = append(peer.cancels, cancel)
}

// watchInboundOffer waits for a later joiner's offer document to appear.
// Repeat snapshots of the same record are ignored once a session exists.
func (c *Controller) watchInboundOffer(ctx context.Context, id string) {
	peer := c.peers[id]
	key := signaling.SessionKey{RoomID: c.roomID, From: id, To: c.localID}
	cancel, err := c.deps.Store.Watch(ctx, key.SessionPath(), func(doc store.Document) {
		var rec signaling.SessionRecord
		if err := store.Decode(doc, &rec); err != nil {
			slog.Warn("discarding malformed session record", "participant", id, "err", err)
			return
		}
		if rec.Offer == nil {
			return
		}
		c.post(offerReceivedEvent{remoteID: id})
	})
	if err != nil {
		slog.Error("watching inbound offers", "participant", id, "err", err)
		return
	}
	peer.cancels = append(peer.cancels, cancel)
}

// removeFromRoster drops a vanished peer from the shared room record.
func (c *Controller) removeFromRoster(ctx context.Context, id string) {
	rec, err := readRoom(ctx, c.deps.Store, c.roomID)
	if err != nil {
		return
	}
	rec.UserIDs = remove(rec.UserIDs, id)
	doc, err := store.Encode(rec)
	if err != nil {
		return
	}
	if err := c.deps.Store.Update(ctx, signaling.RoomPath(c.roomID), doc); err != nil {
		slog.Debug("removing vanished peer from roster", "remote", id, "err", err)
	}
}

// removeName rewrites the name registry without the local entry.
func (c *Controller) removeName(ctx context.Context) {
	doc, err := c.deps.Store.Get(ctx, signaling.UserNamesPath(c.roomID))
	if err != nil {
		return
	}
	names := make(map[string]string)
	if err := store.Decode(doc, &names); err != nil {
		return
	}
	delete(names, c.localID)
	fields := make(store.Document, len(names))
	for id, name := range names {
		fields[id] = name
	}
	if err := c.deps.Store.Set(ctx, signaling.UserNamesPath(c.roomID), fields); err != nil {
		slog.Debug("removing name registry entry", "err", err)
	}
}

func (c *Controller) writeCoord(ctx context.Context, coord grid.Coord) error {
	doc, err := store.Encode(signaling.CoordRecord{Row: coord.Row, Col: coord.Col})
	if err != nil {
		return err
	}
	return c.deps.Store.Set(ctx, signaling.CoordPath(c.roomID, c.localID), doc)
}

// recompute re-derives the full proximity assignment relative to the local
// tile and hands it to the binder. Always a full recompute, never a patch.
func (c *Controller) recompute() {
	local, ok := c.coords[c.localID]
	if !ok {
		return
	}
	c.deps.Binder.ApplyProximity(grid.Present(local, c.coords, c.deps.Shape))
}

func (c *Controller) snapshot() Snapshot {
	snap := Snapshot{
		RoomID:   c.roomID,
		RoomName: c.roomName,
		LocalID:  c.localID,
		Names:    make(map[string]string, len(c.names)),
		Coords:   make(map[string]grid.Coord, len(c.coords)),
		Volumes:  make(map[string]float64, len(c.coords)),
	}
	for id, name := range c.names {
		snap.Names[id] = name
	}
	local := c.coords[c.localID]
	a := grid.Present(local, c.coords, c.deps.Shape)
	for id, coord := range c.coords {
		snap.Coords[id] = coord
		if level, ok := a.Participants[id]; ok {
			snap.Volumes[id] = level.Volume
		}
	}
	return snap
}

func (c *Controller) displayName(id string) string {
	if name, ok := c.names[id]; ok && name != "" {
		return name
	}
	return id
}

func readDirectory(ctx context.Context, s store.Store) (signaling.DirectoryRecord, error) {
	dir := signaling.DirectoryRecord{RoomNameToID: make(map[string]string)}
	doc, err := s.Get(ctx, signaling.DirectoryPath())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return dir, nil
		}
		return dir, err
	}
	if err := store.Decode(doc, &dir); err != nil {
		return dir, err
	}
	if dir.RoomNameToID == nil {
		dir.RoomNameToID = make(map[string]string)
	}
	return dir, nil
}

func writeDirectory(ctx context.Context, s store.Store, dir signaling.DirectoryRecord) error {
	doc, err := store.Encode(dir)
	if err != nil {
		return err
	}
	return s.Set(ctx, signaling.DirectoryPath(), doc)
}

func readRoom(ctx context.Context, s store.Store, roomID string) (signaling.RoomRecord, error) {
	var rec signaling.RoomRecord
	doc, err := s.Get(ctx, signaling.RoomPath(roomID))
	if err != nil {
		return rec, err
	}
	if err := store.Decode(doc, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func readCoord(ctx context.Context, s store.Store, roomID, id string) (grid.Coord, error) {
	doc, err := s.Get(ctx, signaling.CoordPath(roomID, id))
	if err != nil {
		return grid.Coord{}, err
	}
	var rec signaling.CoordRecord
	if err := store.Decode(doc, &rec); err != nil {
		return grid.Coord{}, err
	}
	return grid.Coord{Row: rec.Row, Col: rec.Col}, nil
}

func userNum(id string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "USER"))
	if err != nil {
		return -1
	}
	return n
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

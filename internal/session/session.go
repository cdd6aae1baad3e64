// Package session drives the negotiation lifecycle of one remote participant:
// a single connection, its offer/answer exchange, its candidate mailboxes and
// its teardown. The transport itself sits behind the Conn interface.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mehtakaran9/gridcall/internal/media"
	"github.com/mehtakaran9/gridcall/internal/signaling"
	"github.com/mehtakaran9/gridcall/internal/store"
)

var ErrClosed = errors.New("session closed")

// State is the negotiation state of a session.
type State int

const (
	StateIdle State = iota
	StateOffering
	StateAwaitingAnswer
	StateAnswering
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateAnswering:
		return "answering"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ConnState is the transport-level connection state.
type ConnState int

const (
	ConnNew ConnState = iota
	ConnConnecting
	ConnConnected
	ConnDisconnected
	ConnFailed
	ConnClosed
)

// Conn is the peer transport a session negotiates over.
// Implementations register callbacks before any negotiation method is called.
type Conn interface {
	// CreateOffer produces and locally applies an offer.
	CreateOffer(ctx context.Context) (signaling.Description, error)

	// AcceptAnswer applies the remote answer. Called at most once.
	AcceptAnswer(answer signaling.Description) error

	// CreateAnswer applies the remote offer and produces a locally applied
	// answer.
	CreateAnswer(ctx context.Context, offer signaling.Description) (signaling.Description, error)

	// AddCandidate applies a remote ICE candidate. Valid once a remote
	// description exists, finalized or not.
	AddCandidate(cand signaling.Candidate) error

	// OnCandidate registers the local candidate discovery hook.
	OnCandidate(fn func(signaling.Candidate))

	// OnStateChange registers the transport state hook.
	OnStateChange(fn func(ConnState))

	// OnRemoteStream registers the remote media hook.
	OnRemoteStream(fn func(*media.RemoteStream))

	Close() error
}

// Config wires one session.
type Config struct {
	// Key identifies the shared signaling record; Key.From initiated the offer.
	Key signaling.SessionKey

	// LocalID and RemoteID are this process's participant and the peer.
	LocalID  string
	RemoteID string

	Conn    Conn
	Channel *signaling.Channel

	// OnClosed fires exactly once when the session leaves Connected (or any
	// earlier state) because the transport dropped or negotiation failed.
	// Local teardown via Close does not fire it.
	OnClosed func(remoteID string)

	// OnStream fires when remote media becomes available.
	OnStream func(remoteID string, s *media.RemoteStream)
}

// Session is one live or negotiating peer connection.
type Session struct {
	cfg Config

	mu       sync.Mutex
	state    State
	answered bool
	reported bool
	cancels  []store.CancelFunc
}

// Initiate runs the caller path: publish an offer, subscribe for the answer
// and the peer's candidate mailbox. The returned session is in
// StateAwaitingAnswer on success and StateClosed on error.
func Initiate(ctx context.Context, cfg Config) (*Session, error) {
	s := &Session{cfg: cfg, state: StateIdle}
	s.wireConn(ctx)

	s.setState(StateOffering)
	offer, err := cfg.Conn.CreateOffer(ctx)
	if err != nil {
		s.fail()
		return s, fmt.Errorf("create offer for %s: %w", cfg.RemoteID, err)
	}
	if err := cfg.Channel.PublishOffer(ctx, cfg.Key, offer); err != nil {
		s.fail()
		return s, fmt.Errorf("publish offer for %s: %w", cfg.RemoteID, err)
	}
	s.setState(StateAwaitingAnswer)

	cancelAnswer, err := cfg.Channel.SubscribeAnswer(ctx, cfg.Key, s.applyAnswer)
	if err != nil {
		s.fail()
		return s, fmt.Errorf("subscribe answer for %s: %w", cfg.RemoteID, err)
	}
	s.addCancel(cancelAnswer)

	if err := s.subscribeRemoteCandidates(ctx); err != nil {
		s.fail()
		return s, err
	}
	return s, nil
}

// Respond runs the callee path: read the published offer, answer it and
// subscribe to the peer's candidate mailbox. The returned session is in
// StateConnected pending transport establishment, or StateClosed on error.
func Respond(ctx context.Context, cfg Config) (*Session, error) {
	s := &Session{cfg: cfg, state: StateIdle}
	s.wireConn(ctx)

	s.setState(StateAnswering)
	offer, err := cfg.Channel.ReadOffer(ctx, cfg.Key)
	if err != nil {
		s.fail()
		return s, fmt.Errorf("read offer from %s: %w", cfg.RemoteID, err)
	}
	answer, err := cfg.Conn.CreateAnswer(ctx, offer)
	if err != nil {
		s.fail()
		return s, fmt.Errorf("create answer for %s: %w", cfg.RemoteID, err)
	}
	if err := cfg.Channel.PublishAnswer(ctx, cfg.Key, answer); err != nil {
		s.fail()
		return s, fmt.Errorf("publish answer for %s: %w", cfg.RemoteID, err)
	}
	s.setState(StateConnected)

	if err := s.subscribeRemoteCandidates(ctx); err != nil {
		s.fail()
		return s, err
	}
	return s, nil
}

// State returns the current negotiation state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RemoteID returns the peer participant id.
func (s *Session) RemoteID() string {
	return s.cfg.RemoteID
}

// Close tears the session down locally: subscriptions are cancelled before
// the transport is released, so a late store callback observes StateClosed
// and no-ops. Close never fires OnClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.reported = true
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if err := s.cfg.Conn.Close(); err != nil {
		slog.Debug("closing peer transport", "remote", s.cfg.RemoteID, "err", err)
	}
}

func (s *Session) wireConn(ctx context.Context) {
	s.cfg.Conn.OnCandidate(func(cand signaling.Candidate) {
		if s.State() == StateClosed {
			return
		}
		if err := s.cfg.Channel.AppendCandidate(ctx, s.cfg.Key, s.cfg.LocalID, cand); err != nil {
			slog.Warn("appending local candidate", "remote", s.cfg.RemoteID, "err", err)
		}
	})

	s.cfg.Conn.OnStateChange(func(cs ConnState) {
		switch cs {
		case ConnDisconnected, ConnFailed, ConnClosed:
			s.remoteGone()
		}
	})

	s.cfg.Conn.OnRemoteStream(func(rs *media.RemoteStream) {
		if s.State() == StateClosed {
			return
		}
		if s.cfg.OnStream != nil {
			s.cfg.OnStream(s.cfg.RemoteID, rs)
		}
	})
}

// applyAnswer moves an initiator session to Connected. The channel already
// deduplicates answer snapshots, but a closed session still refuses late
// deliveries.
func (s *Session) applyAnswer(answer signaling.Description) {
	s.mu.Lock()
	if s.state != StateAwaitingAnswer || s.answered {
		s.mu.Unlock()
		return
	}
	s.answered = true
	s.mu.Unlock()

	if err := s.cfg.Conn.AcceptAnswer(answer); err != nil {
		slog.Warn("applying remote answer", "remote", s.cfg.RemoteID, "err", err)
		s.remoteGone()
		return
	}
	s.setState(StateConnected)
}

func (s *Session) subscribeRemoteCandidates(ctx context.Context) error {
	cancel, err := s.cfg.Channel.SubscribeCandidates(ctx, s.cfg.Key, s.cfg.RemoteID, func(cand signaling.Candidate) {
		if s.State() == StateClosed {
			return
		}
		if err := s.cfg.Conn.AddCandidate(cand); err != nil {
			slog.Debug("applying remote candidate", "remote", s.cfg.RemoteID, "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe candidates from %s: %w", s.cfg.RemoteID, err)
	}
	s.addCancel(cancel)
	return nil
}

// remoteGone handles transport loss and negotiation failure identically to an
// explicit departure, reporting upward exactly once.
func (s *Session) remoteGone() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	report := !s.reported
	s.reported = true
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if err := s.cfg.Conn.Close(); err != nil {
		slog.Debug("closing peer transport", "remote", s.cfg.RemoteID, "err", err)
	}
	if report && s.cfg.OnClosed != nil {
		s.cfg.OnClosed(s.cfg.RemoteID)
	}
}

// fail closes the transport after a setup error without reporting upward; the
// caller sees the error directly.
func (s *Session) fail() {
	s.mu.Lock()
	s.state = StateClosed
	s.reported = true
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	_ = s.cfg.Conn.Close()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) addCancel(c store.CancelFunc) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		c()
		return
	}
	s.cancels = append(s.cancels, c)
	s.mu.Unlock()
}

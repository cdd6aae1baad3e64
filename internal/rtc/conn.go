// Package rtc implements session.Conn on pion/webrtc.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/mehtakaran9/gridcall/internal/config"
	"github.com/mehtakaran9/gridcall/internal/media"
	"github.com/mehtakaran9/gridcall/internal/session"
	"github.com/mehtakaran9/gridcall/internal/signaling"
)

// Conn adapts a pion peer connection to the session layer.
type Conn struct {
	pc       *webrtc.PeerConnection
	remoteID string

	mu          sync.Mutex
	remote      *media.RemoteStream
	onCandidate func(signaling.Candidate)
	onState     func(session.ConnState)
	onStream    func(*media.RemoteStream)
}

// NewConn builds a peer connection from the static ICE configuration,
// attaches the local stream and applies the fixed send policy.
func NewConn(cfg *config.Config, local *media.LocalStream, remoteID string) (*Conn, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers:           []webrtc.ICEServer{{URLs: cfg.GetSTUNServers()}},
		ICECandidatePoolSize: uint8(cfg.CandidatePoolSize),
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	c := &Conn{pc: pc, remoteID: remoteID}

	for _, track := range local.Tracks() {
		if _, err := pc.AddTrack(track); err != nil {
			pc.Close()
			return nil, fmt.Errorf("attach local track: %w", err)
		}
	}

	// Outbound bandwidth constraint is a fixed per-session policy, applied
	// once and never renegotiated.
	local.ApplyPolicy(media.SendPolicy{
		MaxBitrate:        cfg.MaxBitrate,
		ScaleResolutionBy: cfg.ScaleResolutionBy,
	})

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		c.mu.Lock()
		fn := c.onCandidate
		c.mu.Unlock()
		if fn != nil {
			fn(fromICEInit(cand.ToJSON()))
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.mu.Lock()
		fn := c.onState
		c.mu.Unlock()
		if fn != nil {
			fn(mapConnState(state))
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.mu.Lock()
		first := c.remote == nil
		if first {
			c.remote = media.NewRemoteStream(remoteID)
		}
		rs := c.remote
		fn := c.onStream
		c.mu.Unlock()

		rs.AddTrack(track)
		go drainTrack(track, remoteID)

		if first && fn != nil {
			fn(rs)
		}
	})

	return c, nil
}

func (c *Conn) CreateOffer(ctx context.Context) (signaling.Description, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return signaling.Description{}, fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return signaling.Description{}, fmt.Errorf("set local description: %w", err)
	}
	local := c.pc.LocalDescription()
	return signaling.Description{Kind: local.Type.String(), SDP: local.SDP}, nil
}

func (c *Conn) AcceptAnswer(answer signaling.Description) error {
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer.SDP}
	if err := c.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (c *Conn) CreateAnswer(ctx context.Context, offer signaling.Description) (signaling.Description, error) {
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}
	if err := c.pc.SetRemoteDescription(remote); err != nil {
		return signaling.Description{}, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return signaling.Description{}, fmt.Errorf("create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return signaling.Description{}, fmt.Errorf("set local description: %w", err)
	}
	local := c.pc.LocalDescription()
	return signaling.Description{Kind: local.Type.String(), SDP: local.SDP}, nil
}

func (c *Conn) AddCandidate(cand signaling.Candidate) error {
	if err := c.pc.AddICECandidate(toICEInit(cand)); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	return nil
}

func (c *Conn) OnCandidate(fn func(signaling.Candidate)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCandidate = fn
}

func (c *Conn) OnStateChange(fn func(session.ConnState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

func (c *Conn) OnRemoteStream(fn func(*media.RemoteStream)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStream = fn
}

func (c *Conn) Close() error {
	return c.pc.Close()
}

func fromICEInit(init webrtc.ICECandidateInit) signaling.Candidate {
	return signaling.Candidate{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

func toICEInit(cand signaling.Candidate) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        cand.Candidate,
		SDPMid:           cand.SDPMid,
		SDPMLineIndex:    cand.SDPMLineIndex,
		UsernameFragment: cand.UsernameFragment,
	}
}

func mapConnState(state webrtc.PeerConnectionState) session.ConnState {
	switch state {
	case webrtc.PeerConnectionStateNew:
		return session.ConnNew
	case webrtc.PeerConnectionStateConnecting:
		return session.ConnConnecting
	case webrtc.PeerConnectionStateConnected:
		return session.ConnConnected
	case webrtc.PeerConnectionStateDisconnected:
		return session.ConnDisconnected
	case webrtc.PeerConnectionStateFailed:
		return session.ConnFailed
	}
	return session.ConnClosed
}

// drainTrack keeps the receiver's RTP pipeline flowing. Rendering is not the
// core's concern; packets are read and dropped.
func drainTrack(track *webrtc.TrackRemote, remoteID string) {
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("remote track closed", "remote", remoteID, "err", err)
			}
			return
		}
	}
}

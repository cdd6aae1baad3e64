// Package media holds the opaque stream handles the session layer passes
// around. Capture and rendering live elsewhere; the core only attaches local
// tracks to new peer connections and hands remote tracks to the tile binder.
package media

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// SendPolicy constrains the outgoing video of a peer session. Applied once
// when the session is created, never renegotiated.
type SendPolicy struct {
	// MaxBitrate is the outbound video budget in bits per second.
	MaxBitrate int

	// ScaleResolutionBy divides both video dimensions before encoding.
	ScaleResolutionBy int
}

// LocalStream is the local participant's outgoing media, shared across every
// peer session in the room.
type LocalStream struct {
	mu     sync.Mutex
	tracks []webrtc.TrackLocal
	policy SendPolicy
	stop   []func()
}

// NewLocalStream wraps externally captured tracks.
func NewLocalStream(tracks ...webrtc.TrackLocal) *LocalStream {
	return &LocalStream{tracks: tracks}
}

// Tracks returns the outgoing tracks to attach to a peer connection.
func (s *LocalStream) Tracks() []webrtc.TrackLocal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]webrtc.TrackLocal(nil), s.tracks...)
}

// ApplyPolicy records the send constraint. The producer feeding the video
// track consults it when sizing and pacing samples.
func (s *LocalStream) ApplyPolicy(p SendPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
}

// Policy returns the active send constraint.
func (s *LocalStream) Policy() SendPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

// Close stops any producers feeding the local tracks.
func (s *LocalStream) Close() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	for _, f := range stop {
		f()
	}
}

// RemoteStream accumulates the tracks received from one remote participant.
type RemoteStream struct {
	mu     sync.Mutex
	id     string
	tracks []*webrtc.TrackRemote
}

// NewRemoteStream creates an empty remote stream for the given participant.
func NewRemoteStream(id string) *RemoteStream {
	return &RemoteStream{id: id}
}

// ParticipantID returns the owning remote participant's id.
func (r *RemoteStream) ParticipantID() string {
	return r.id
}

// AddTrack records a newly received remote track.
func (r *RemoteStream) AddTrack(t *webrtc.TrackRemote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracks = append(r.tracks, t)
}

// Tracks returns the tracks received so far.
func (r *RemoteStream) Tracks() []*webrtc.TrackRemote {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*webrtc.TrackRemote(nil), r.tracks...)
}

package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mehtakaran9/gridcall/internal/media"
	"github.com/mehtakaran9/gridcall/internal/session"
	"github.com/mehtakaran9/gridcall/internal/signaling"
	"github.com/mehtakaran9/gridcall/internal/store/memstore"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

// fakeConn is a scriptable transport for exercising the negotiation paths
// without WebRTC.
type fakeConn struct {
	mu       sync.Mutex
	accepted []signaling.Description
	offers   []signaling.Description
	added    []signaling.Candidate
	closed   int

	onCandidate func(signaling.Candidate)
	onState     func(session.ConnState)
	onStream    func(*media.RemoteStream)
}

func (f *fakeConn) CreateOffer(ctx context.Context) (signaling.Description, error) {
	return signaling.Description{Kind: "offer", SDP: "v=0 caller"}, nil
}

func (f *fakeConn) AcceptAnswer(answer signaling.Description) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted = append(f.accepted, answer)
	return nil
}

func (f *fakeConn) CreateAnswer(ctx context.Context, offer signaling.Description) (signaling.Description, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = append(f.offers, offer)
	return signaling.Description{Kind: "answer", SDP: "v=0 callee"}, nil
}

func (f *fakeConn) AddCandidate(cand signaling.Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, cand)
	return nil
}

func (f *fakeConn) OnCandidate(fn func(signaling.Candidate))    { f.onCandidate = fn }
func (f *fakeConn) OnStateChange(fn func(session.ConnState))    { f.onState = fn }
func (f *fakeConn) OnRemoteStream(fn func(*media.RemoteStream)) { f.onStream = fn }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeConn) acceptedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.accepted)
}

func (f *fakeConn) addedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.added)
}

func (f *fakeConn) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testKey() signaling.SessionKey {
	return signaling.SessionKey{RoomID: "ROOM0", From: "USER1", To: "USER0"}
}

func TestInitiate(t *testing.T) {
	ctx := context.Background()
	m := memstore.New()
	defer m.Close()
	ch := signaling.NewChannel(m)
	conn := &fakeConn{}

	sess, err := session.Initiate(ctx, session.Config{
		Key:      testKey(),
		LocalID:  "USER1",
		RemoteID: "USER0",
		Conn:     conn,
		Channel:  ch,
	})
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, session.StateAwaitingAnswer, sess.State())

	offer, err := ch.ReadOffer(ctx, testKey())
	require.NoError(t, err)
	assert.Equal(t, "v=0 caller", offer.SDP)

	t.Run("answer_connects", func(t *testing.T) {
		answer := signaling.Description{Kind: "answer", SDP: "v=0 callee"}
		require.NoError(t, ch.PublishAnswer(ctx, testKey(), answer))

		require.Eventually(t, func() bool {
			return sess.State() == session.StateConnected
		}, waitFor, tick)
		assert.Equal(t, 1, conn.acceptedCount())
	})

	t.Run("redelivered_answer_ignored", func(t *testing.T) {
		require.NoError(t, ch.PublishAnswer(ctx, testKey(), signaling.Description{Kind: "answer", SDP: "v=0 again"}))
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, 1, conn.acceptedCount())
		assert.Equal(t, session.StateConnected, sess.State())
	})
}

func TestInitiateOfferConflict(t *testing.T) {
	ctx := context.Background()
	m := memstore.New()
	defer m.Close()
	ch := signaling.NewChannel(m)

	require.NoError(t, ch.PublishOffer(ctx, testKey(), signaling.Description{Kind: "offer", SDP: "other"}))

	conn := &fakeConn{}
	sess, err := session.Initiate(ctx, session.Config{
		Key: testKey(), LocalID: "USER1", RemoteID: "USER0", Conn: conn, Channel: ch,
	})
	require.ErrorIs(t, err, signaling.ErrOfferExists)
	assert.Equal(t, session.StateClosed, sess.State())
	assert.Equal(t, 1, conn.closedCount())
}

func TestRespond(t *testing.T) {
	ctx := context.Background()
	m := memstore.New()
	defer m.Close()
	ch := signaling.NewChannel(m)

	t.Run("without_offer_fails", func(t *testing.T) {
		conn := &fakeConn{}
		sess, err := session.Respond(ctx, session.Config{
			Key: testKey(), LocalID: "USER0", RemoteID: "USER1", Conn: conn, Channel: ch,
		})
		require.ErrorIs(t, err, signaling.ErrNoOffer)
		assert.Equal(t, session.StateClosed, sess.State())
	})

	t.Run("answers_published_offer", func(t *testing.T) {
		offer := signaling.Description{Kind: "offer", SDP: "v=0 caller"}
		require.NoError(t, ch.PublishOffer(ctx, testKey(), offer))

		conn := &fakeConn{}
		sess, err := session.Respond(ctx, session.Config{
			Key: testKey(), LocalID: "USER0", RemoteID: "USER1", Conn: conn, Channel: ch,
		})
		require.NoError(t, err)
		defer sess.Close()

		assert.Equal(t, session.StateConnected, sess.State())
		require.Len(t, conn.offers, 1)
		assert.Equal(t, offer, conn.offers[0])

		doc, err := m.Get(ctx, testKey().SessionPath())
		require.NoError(t, err)
		assert.Contains(t, doc, "answer")
	})
}

func TestLocalCandidatesPublished(t *testing.T) {
	ctx := context.Background()
	m := memstore.New()
	defer m.Close()
	ch := signaling.NewChannel(m)
	conn := &fakeConn{}

	sess, err := session.Initiate(ctx, session.Config{
		Key: testKey(), LocalID: "USER1", RemoteID: "USER0", Conn: conn, Channel: ch,
	})
	require.NoError(t, err)
	defer sess.Close()

	conn.onCandidate(signaling.Candidate{Candidate: "candidate:1 1 udp 1 192.0.2.1 1 typ host"})

	got := make(chan signaling.Candidate, 1)
	cancel, err := ch.SubscribeCandidates(ctx, testKey(), "USER1", func(c signaling.Candidate) { got <- c })
	require.NoError(t, err)
	defer cancel()

	select {
	case c := <-got:
		assert.Contains(t, c.Candidate, "typ host")
	case <-time.After(waitFor):
		t.Fatal("local candidate never reached the mailbox")
	}
}

func TestRemoteCandidatesApplied(t *testing.T) {
	ctx := context.Background()
	m := memstore.New()
	defer m.Close()
	ch := signaling.NewChannel(m)
	conn := &fakeConn{}

	sess, err := session.Initiate(ctx, session.Config{
		Key: testKey(), LocalID: "USER1", RemoteID: "USER0", Conn: conn, Channel: ch,
	})
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, ch.AppendCandidate(ctx, testKey(), "USER0", signaling.Candidate{Candidate: "remote"}))

	require.Eventually(t, func() bool {
		return conn.addedCount() == 1
	}, waitFor, tick)
}

func TestTransportLossReportsOnce(t *testing.T) {
	ctx := context.Background()
	m := memstore.New()
	defer m.Close()
	ch := signaling.NewChannel(m)
	conn := &fakeConn{}

	var mu sync.Mutex
	var closedIDs []string
	sess, err := session.Initiate(ctx, session.Config{
		Key: testKey(), LocalID: "USER1", RemoteID: "USER0", Conn: conn, Channel: ch,
		OnClosed: func(id string) {
			mu.Lock()
			closedIDs = append(closedIDs, id)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	conn.onState(session.ConnFailed)
	conn.onState(session.ConnDisconnected)

	assert.Equal(t, session.StateClosed, sess.State())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"USER0"}, closedIDs)
}

func TestCloseIsLocal(t *testing.T) {
	ctx := context.Background()
	m := memstore.New()
	defer m.Close()
	ch := signaling.NewChannel(m)
	conn := &fakeConn{}

	var mu sync.Mutex
	var reported bool
	sess, err := session.Initiate(ctx, session.Config{
		Key: testKey(), LocalID: "USER1", RemoteID: "USER0", Conn: conn, Channel: ch,
		OnClosed: func(string) {
			mu.Lock()
			reported = true
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	sess.Close()
	sess.Close()
	assert.Equal(t, session.StateClosed, sess.State())
	assert.Equal(t, 1, conn.closedCount())

	// A transport drop after local close must not report either.
	conn.onState(session.ConnFailed)

	// Candidates appended after close are never applied.
	require.NoError(t, ch.AppendCandidate(ctx, testKey(), "USER0", signaling.Candidate{Candidate: "late"}))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, conn.addedCount())

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, reported)
}

func TestRemoteStreamForwarded(t *testing.T) {
	ctx := context.Background()
	m := memstore.New()
	defer m.Close()
	ch := signaling.NewChannel(m)
	conn := &fakeConn{}

	got := make(chan string, 1)
	sess, err := session.Initiate(ctx, session.Config{
		Key: testKey(), LocalID: "USER1", RemoteID: "USER0", Conn: conn, Channel: ch,
		OnStream: func(id string, s *media.RemoteStream) { got <- id },
	})
	require.NoError(t, err)
	defer sess.Close()

	conn.onStream(media.NewRemoteStream("USER0"))

	select {
	case id := <-got:
		assert.Equal(t, "USER0", id)
	case <-time.After(waitFor):
		t.Fatal("stream never forwarded")
	}
}

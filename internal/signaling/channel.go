package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mehtakaran9/gridcall/internal/store"
)

var (
	ErrOfferExists = errors.New("offer already published for session")
	ErrNoOffer     = errors.New("no offer published for session")
)

// Channel exchanges offers, answers and ICE candidates through the shared
// store. It holds no negotiation state of its own; every side effect lands in
// the store. Store notifications are at-least-once, so subscription callbacks
// guard against duplicate delivery here rather than in every consumer.
type Channel struct {
	store store.Store
}

func NewChannel(s store.Store) *Channel {
	return &Channel{store: s}
}

// PublishOffer writes the offer record. Create-only: a second publish for the
// same key fails with ErrOfferExists.
func (c *Channel) PublishOffer(ctx context.Context, key SessionKey, offer Description) error {
	doc, err := store.Encode(SessionRecord{Offer: &offer})
	if err != nil {
		return fmt.Errorf("encode offer: %w", err)
	}
	if err := c.store.Create(ctx, key.SessionPath(), doc); err != nil {
		if errors.Is(err, store.ErrExists) {
			return ErrOfferExists
		}
		return err
	}
	return nil
}

// ReadOffer fetches the published offer for key, or ErrNoOffer.
func (c *Channel) ReadOffer(ctx context.Context, key SessionKey) (Description, error) {
	doc, err := c.store.Get(ctx, key.SessionPath())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Description{}, ErrNoOffer
		}
		return Description{}, err
	}
	var rec SessionRecord
	if err := store.Decode(doc, &rec); err != nil {
		return Description{}, fmt.Errorf("decode session record: %w", err)
	}
	if rec.Offer == nil {
		return Description{}, ErrNoOffer
	}
	return *rec.Offer, nil
}

// PublishAnswer merges the answer into the existing record. Update-only: it
// fails with ErrNoOffer when no offer has been published for key.
func (c *Channel) PublishAnswer(ctx context.Context, key SessionKey, answer Description) error {
	if _, err := c.ReadOffer(ctx, key); err != nil {
		return err
	}
	ansDoc, err := store.Encode(answer)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	return c.store.Update(ctx, key.SessionPath(), store.Document{"answer": map[string]any(ansDoc)})
}

// SubscribeAnswer invokes fn at most once, the first time an answer appears
// on the session record. Snapshot redeliveries after that are ignored.
func (c *Channel) SubscribeAnswer(ctx context.Context, key SessionKey, fn func(Description)) (store.CancelFunc, error) {
	var once sync.Once
	return c.store.Watch(ctx, key.SessionPath(), func(doc store.Document) {
		var rec SessionRecord
		if err := store.Decode(doc, &rec); err != nil {
			slog.Warn("discarding malformed session record", "path", key.SessionPath(), "err", err)
			return
		}
		if rec.Answer == nil {
			return
		}
		once.Do(func() { fn(*rec.Answer) })
	})
}

// AppendCandidate adds a candidate to owner's mailbox for the session.
func (c *Channel) AppendCandidate(ctx context.Context, key SessionKey, owner string, cand Candidate) error {
	doc, err := store.Encode(cand)
	if err != nil {
		return fmt.Errorf("encode candidate: %w", err)
	}
	return c.store.Append(ctx, key.CandidatesPath(owner), doc)
}

// SubscribeCandidates invokes fn once per candidate appended to owner's
// mailbox, in arrival order. Candidates may arrive before or after the
// answer; callers apply them regardless.
func (c *Channel) SubscribeCandidates(ctx context.Context, key SessionKey, owner string, fn func(Candidate)) (store.CancelFunc, error) {
	return c.store.WatchCollection(ctx, key.CandidatesPath(owner), func(ch store.Change) {
		if ch.Type != store.Added {
			return
		}
		var cand Candidate
		if err := store.Decode(ch.Doc, &cand); err != nil {
			slog.Warn("discarding malformed candidate", "path", key.CandidatesPath(owner), "err", err)
			return
		}
		fn(cand)
	})
}

// Clear removes the session record and both candidate mailboxes.
func (c *Channel) Clear(ctx context.Context, key SessionKey) error {
	if err := c.store.DeleteCollection(ctx, key.CandidatesPath(key.From)); err != nil {
		return err
	}
	if err := c.store.DeleteCollection(ctx, key.CandidatesPath(key.To)); err != nil {
		return err
	}
	return c.store.Delete(ctx, key.SessionPath())
}

// Store exposes the underlying store for layers that share it.
func (c *Channel) Store() store.Store {
	return c.store
}

// Package redistore backs store.Store with Redis. Documents are hashes whose
// fields are msgpack blobs, appended collections are lists, and change
// notifications travel over one pub/sub channel per path carrying the change
// payload, which keeps per-path delivery ordered.
//
// Cross-client write-then-read races (two joiners allocating the same tile
// from stale snapshots) are not transactionally guarded; consumers are
// expected to handle notifications idempotently.
package redistore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mehtakaran9/gridcall/internal/store"
)

const (
	docPrefix  = "gridcall:doc:"
	colPrefix  = "gridcall:col:"
	chanPrefix = "gridcall:chan:"
)

type Redistore struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, addr string) (*Redistore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redistore{client: client}, nil
}

func (r *Redistore) Get(ctx context.Context, path string) (store.Document, error) {
	fields, err := r.client.HGetAll(ctx, docPrefix+path).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, store.ErrNotFound
	}
	return decodeFields(fields)
}

func (r *Redistore) Create(ctx context.Context, path string, doc store.Document) error {
	n, err := r.client.Exists(ctx, docPrefix+path).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		return store.ErrExists
	}
	return r.write(ctx, path, doc)
}

func (r *Redistore) Update(ctx context.Context, path string, fields store.Document) error {
	n, err := r.client.Exists(ctx, docPrefix+path).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	if err := r.write(ctx, path, fields); err != nil {
		return err
	}
	return nil
}

func (r *Redistore) Set(ctx context.Context, path string, doc store.Document) error {
	if err := r.client.Del(ctx, docPrefix+path).Err(); err != nil {
		return err
	}
	return r.write(ctx, path, doc)
}

func (r *Redistore) Delete(ctx context.Context, path string) error {
	return r.client.Del(ctx, docPrefix+path).Err()
}

func (r *Redistore) Append(ctx context.Context, path string, doc store.Document) error {
	blob, err := msgpack.Marshal(doc)
	if err != nil {
		return err
	}
	if err := r.client.RPush(ctx, colPrefix+path, blob).Err(); err != nil {
		return err
	}
	return r.client.Publish(ctx, chanPrefix+path, blob).Err()
}

func (r *Redistore) DeleteCollection(ctx context.Context, path string) error {
	return r.client.Del(ctx, colPrefix+path).Err()
}

func (r *Redistore) Watch(ctx context.Context, path string, fn func(store.Document)) (store.CancelFunc, error) {
	sub := r.client.Subscribe(ctx, chanPrefix+path)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	// Replay the current document after the subscription is live so no write
	// falls between the read and the first notification. A write landing in
	// between is delivered twice; consumers are idempotent.
	if doc, err := r.Get(ctx, path); err == nil {
		fn(doc)
	}

	go func() {
		for msg := range sub.Channel() {
			doc, err := decodeBlob([]byte(msg.Payload))
			if err != nil {
				slog.Warn("discarding malformed document notification", "path", path, "err", err)
				continue
			}
			fn(doc)
		}
	}()

	return func() { sub.Close() }, nil
}

func (r *Redistore) WatchCollection(ctx context.Context, path string, fn func(store.Change)) (store.CancelFunc, error) {
	sub := r.client.Subscribe(ctx, chanPrefix+path)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	blobs, err := r.client.LRange(ctx, colPrefix+path, 0, -1).Result()
	if err != nil {
		sub.Close()
		return nil, err
	}
	for _, blob := range blobs {
		doc, err := decodeBlob([]byte(blob))
		if err != nil {
			slog.Warn("discarding malformed collection entry", "path", path, "err", err)
			continue
		}
		fn(store.Change{Type: store.Added, Doc: doc})
	}

	go func() {
		for msg := range sub.Channel() {
			doc, err := decodeBlob([]byte(msg.Payload))
			if err != nil {
				slog.Warn("discarding malformed collection notification", "path", path, "err", err)
				continue
			}
			fn(store.Change{Type: store.Added, Doc: doc})
		}
	}()

	return func() { sub.Close() }, nil
}

func (r *Redistore) Close() error {
	return r.client.Close()
}

// write merges fields into the hash and publishes the resulting document.
func (r *Redistore) write(ctx context.Context, path string, fields store.Document) error {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		blob, err := msgpack.Marshal(v)
		if err != nil {
			return err
		}
		args = append(args, k, blob)
	}
	// HSET rejects an empty field list; an empty Set still publishes.
	if len(args) > 0 {
		if err := r.client.HSet(ctx, docPrefix+path, args...).Err(); err != nil {
			return err
		}
	}

	doc, err := r.Get(ctx, path)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			doc = store.Document{}
		} else {
			return err
		}
	}
	blob, err := msgpack.Marshal(doc)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, chanPrefix+path, blob).Err()
}

func decodeFields(fields map[string]string) (store.Document, error) {
	doc := make(store.Document, len(fields))
	for k, blob := range fields {
		var v any
		if err := msgpack.Unmarshal([]byte(blob), &v); err != nil {
			return nil, fmt.Errorf("decode field %q: %w", k, err)
		}
		doc[k] = v
	}
	return doc, nil
}

func decodeBlob(blob []byte) (store.Document, error) {
	var doc store.Document
	if err := msgpack.Unmarshal(blob, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

package cmd

import (
	"context"

	"github.com/mehtakaran9/gridcall/internal/config"
	"github.com/mehtakaran9/gridcall/internal/grid"
	"github.com/mehtakaran9/gridcall/internal/media"
	"github.com/mehtakaran9/gridcall/internal/room"
	"github.com/mehtakaran9/gridcall/internal/rtc"
	"github.com/mehtakaran9/gridcall/internal/session"
	"github.com/mehtakaran9/gridcall/internal/store"
	"github.com/mehtakaran9/gridcall/internal/store/memstore"
	"github.com/mehtakaran9/gridcall/internal/store/redistore"
	"github.com/mehtakaran9/gridcall/internal/ui"
)

// RoomContext bundles everything a create or join command needs to enter a
// room: the document store, the local media stream, and the terminal view.
type RoomContext struct {
	Store  store.Store
	Local  *media.LocalStream
	View   *ui.RoomView
	Config *config.Config
}

func NewRoomContext(ctx context.Context, cfg *config.Config) (*RoomContext, error) {
	var (
		st  store.Store
		err error
	)
	if cfg.MemoryStore {
		st = memstore.New()
	} else {
		st, err = redistore.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
	}

	local, err := media.Synthetic()
	if err != nil {
		st.Close()
		return nil, err
	}
	local.ApplyPolicy(media.SendPolicy{
		MaxBitrate:        cfg.MaxBitrate,
		ScaleResolutionBy: cfg.ScaleResolutionBy,
	})

	shape := grid.Shape{Rows: cfg.Rows, Cols: cfg.Cols}
	return &RoomContext{
		Store:  st,
		Local:  local,
		View:   ui.NewRoomView(shape),
		Config: cfg,
	}, nil
}

func (r *RoomContext) Close() {
	if r.Local != nil {
		r.Local.Close()
	}
	if r.Store != nil {
		r.Store.Close()
	}
}

// Deps assembles the controller dependencies, with a connection factory that
// dials a fresh WebRTC peer connection per remote participant.
func (r *RoomContext) Deps() room.Deps {
	return room.Deps{
		Store:  r.Store,
		Shape:  grid.Shape{Rows: r.Config.Rows, Cols: r.Config.Cols},
		Binder: r.View,
		NewConn: func(remoteID string) (session.Conn, error) {
			return rtc.NewConn(r.Config, r.Local, remoteID)
		},
	}
}

func LoadConfig(opts config.Options) (*config.Config, error) {
	return config.Load(opts)
}

// RunRoom hands the entered room to the terminal view and blocks until the
// user leaves.
func RunRoom(r *RoomContext, ctrl *room.Controller) error {
	r.View.SetController(ctrl)
	ui.RenderRoster(ctrl.Snapshot())
	return r.View.Run()
}

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/dalemusser/usergrid/internal/optionstore"
	"github.com/dalemusser/usergrid/internal/suggest"
	"go.uber.org/zap"
)

// WSConfig tunes the websocket transport.
type WSConfig struct {
	OriginPatterns []string
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

// DefaultWSConfig returns a 10s write timeout, 30s pings and a 4KB frame limit.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4 << 10,
	}
}

var errBinaryFrame = errors.New("binary frame")

// errorFrame reports a rejected client frame without closing the socket.
type errorFrame struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs an editor session: each client
// frame {type, value} goes through h into store, and every replacement of
// store is written back as a Payload frame.
func ServeWS(w http.ResponseWriter, r *http.Request, session string, store *optionstore.Store, h *suggest.Handler, cfg WSConfig, logger *zap.Logger) error {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: cfg.OriginPatterns})
	if err != nil {
		return err
	}
	defer conn.CloseNow()
	if cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsubscribe := store.Subscribe()
	defer unsubscribe()

	write := func(v any) error {
		wctx := ctx
		if cfg.WriteTimeout > 0 {
			var c context.CancelFunc
			wctx, c = context.WithTimeout(ctx, cfg.WriteTimeout)
			defer c()
		}
		return wsjson.Write(wctx, conn, v)
	}

	first := store.Snapshot()
	if err := write(Payload{Session: session, Snapshot: first}); err != nil {
		return err
	}
	last := first.Version

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				readErr <- err
				return
			}
			if typ != websocket.MessageText {
				readErr <- errBinaryFrame
				return
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	var ping <-chan time.Time
	if cfg.PingInterval > 0 {
		t := time.NewTicker(cfg.PingInterval)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, errBinaryFrame) {
				return conn.Close(websocket.StatusUnsupportedData, "text frames only")
			}
			return closeErr(err)
		case data := <-frames:
			var ev suggest.Event
			err := json.Unmarshal(data, &ev)
			if err == nil {
				_, err = h.Handle(store, ev)
			}
			if err != nil {
				logger.Debug("websocket event rejected", zap.String("session", session), zap.Error(err))
				if err := write(errorFrame{Error: "invalid_event", Message: err.Error()}); err != nil {
					return err
				}
			}
		case snap, ok := <-updates:
			if !ok {
				return conn.Close(websocket.StatusGoingAway, "session closed")
			}
			if snap.Version <= last {
				continue
			}
			last = snap.Version
			if err := write(Payload{Session: session, Snapshot: snap}); err != nil {
				return err
			}
		case <-ping:
			pctx, c := context.WithTimeout(ctx, cfg.PingInterval)
			err := conn.Ping(pctx)
			c()
			if err != nil {
				return err
			}
		}
	}
}

// closeErr hides the errors of an orderly client disconnect.
func closeErr(err error) error {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

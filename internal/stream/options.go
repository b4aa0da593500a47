package stream

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/usergrid/internal/optionstore"
	"go.uber.org/zap"
)

// OptionsEvent is the SSE event name carrying a snapshot.
const OptionsEvent = "options"

// Config tunes the SSE transport.
type Config struct {
	// KeepAlive is the interval between keep-alive comments. Zero disables them.
	KeepAlive time.Duration
	// Retry is the reconnect delay suggested to clients.
	Retry time.Duration
}

// DefaultConfig returns a 15s keep-alive and a 3s retry.
func DefaultConfig() Config {
	return Config{KeepAlive: 15 * time.Second, Retry: 3 * time.Second}
}

// Payload is the wire form of a snapshot on both transports.
type Payload struct {
	Session string `json:"session"`
	optionstore.Snapshot
}

// ServeSSE writes the current snapshot of store, then one "options" event
// per replacement, until the client leaves or the store is closed. Event
// ids are snapshot versions; the snapshot is skipped when the client's
// Last-Event-ID already names it.
func ServeSSE(w http.ResponseWriter, r *http.Request, session string, store *optionstore.Store, cfg Config, logger *zap.Logger) error {
	sw, err := NewWriter(w, r)
	if err != nil {
		return err
	}
	defer sw.Close()

	// Streams outlive the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug("clear write deadline", zap.String("session", session), zap.Error(err))
	}

	updates, cancel := store.Subscribe()
	defer cancel()

	// A load racing the subscription may be delivered twice.
	sent := false
	var last uint64
	// A reconnecting client that already holds the current version gets
	// only later replacements.
	if v, err := strconv.ParseUint(sw.LastEventID, 10, 64); err == nil && v == store.Snapshot().Version {
		sent, last = true, v
	}
	send := func(snap optionstore.Snapshot) error {
		if sent && snap.Version <= last {
			return nil
		}
		sent, last = true, snap.Version
		ev, err := JSONEvent(OptionsEvent, Payload{Session: session, Snapshot: snap})
		if err != nil {
			return err
		}
		ev.ID = strconv.FormatUint(snap.Version, 10)
		return sw.Send(ev)
	}

	if cfg.Retry > 0 {
		if err := sw.Send(&Event{Retry: int(cfg.Retry / time.Millisecond)}); err != nil {
			return err
		}
	}
	if err := send(store.Snapshot()); err != nil {
		return err
	}

	var keepAlive <-chan time.Time
	if cfg.KeepAlive > 0 {
		t := time.NewTicker(cfg.KeepAlive)
		defer t.Stop()
		keepAlive = t.C
	}

	for {
		select {
		case <-r.Context().Done():
			return ignoreCanceled(r.Context().Err())
		case snap, ok := <-updates:
			if !ok {
				logger.Debug("option stream ended by store close", zap.String("session", session))
				return nil
			}
			if err := send(snap); err != nil {
				return err
			}
		case <-keepAlive:
			if err := sw.Comment("keep-alive"); err != nil {
				return err
			}
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

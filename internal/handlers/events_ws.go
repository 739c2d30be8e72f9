// internal/handlers/events_ws.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/tabletop/internal/events"
	"github.com/jason-s-yu/tabletop/internal/middleware"
	"github.com/jason-s-yu/tabletop/internal/service"
	"github.com/sirupsen/logrus"
)

const eventWriteTimeout = 3 * time.Second

// TableEventsHandler upgrades to a websocket and streams the domain events of
// one table until either side goes away. The stream is read-only: anything
// the client sends is discarded.
func TableEventsHandler(logger *logrus.Logger, svc *service.TableService, hub *events.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(chi.URLParam(r, "id"), "id")
		if err != nil {
			writeError(logger, w, r, err)
			return
		}
		if _, err := svc.Get(r.Context(), id); err != nil {
			writeError(logger, w, r, err)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.WithField("table", id).WithError(err).Warn("websocket accept")
			return
		}
		defer c.Close(websocket.StatusInternalError, "stream closed")
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		sub := hub.Subscribe(id)
		defer hub.Unsubscribe(sub)

		ctx := c.CloseRead(r.Context())
		err = streamEvents(ctx, c, sub)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
		if err == nil {
			c.Close(websocket.StatusNormalClosure, "")
		}
	}
}

func streamEvents(ctx context.Context, c *websocket.Conn, sub *events.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			wctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
			err := wsjson.Write(wctx, c, ev)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

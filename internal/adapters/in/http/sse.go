package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"orderflow/internal/core/application/realtime"
	"orderflow/internal/core/domain/model/kernel"

	"github.com/labstack/echo/v4"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

type snapshotEvent struct {
	Orders []Order `json:"orders"`
}

type changeEvent struct {
	Order    Order  `json:"order"`
	Previous string `json:"previous,omitempty"`
	Visible  bool   `json:"visible"`
}

// StreamDashboard handles GET /api/v1/orders/events - the caller's dashboard as server-sent events.
func (s *Server) StreamDashboard(ctx echo.Context) error {
	viewer, err := actorFrom(ctx)
	if err != nil {
		return err
	}
	stream, err := s.feed.SubscribeToDashboard(ctx.Request().Context(), viewer)
	if err != nil {
		return err
	}
	return s.serveStream(ctx, stream)
}

// StreamOrder handles GET /api/v1/orders/{orderId}/events.
func (s *Server) StreamOrder(ctx echo.Context, orderId openapi_types.UUID) error {
	viewer, err := actorFrom(ctx)
	if err != nil {
		return err
	}
	id, err := kernel.UUIDFromBytes(orderId[:])
	if err != nil {
		return err
	}
	stream, err := s.feed.SubscribeToOrder(ctx.Request().Context(), viewer, id)
	if err != nil {
		return err
	}
	return s.serveStream(ctx, stream)
}

// serveStream writes events until the client goes away or the stream closes. A comment
// line is sent on every heartbeat so proxies keep the connection open.
func (s *Server) serveStream(ctx echo.Context, stream *realtime.Stream) error {
	defer stream.Close()

	w := ctx.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	done := ctx.Request().Context().Done()
	var seq int64
	for {
		select {
		case <-done:
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case event, ok := <-stream.Events():
			if !ok {
				return nil
			}
			seq++
			if err := writeEvent(w, seq, event); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, seq int64, event realtime.Event) error {
	var payload any
	switch event.Kind {
	case realtime.EventSnapshot:
		orders := make([]Order, len(event.Orders))
		for i, o := range event.Orders {
			orders[i] = toOrder(o)
		}
		payload = snapshotEvent{Orders: orders}
	default:
		change := changeEvent{Visible: event.Visible}
		if event.Order != nil {
			change.Order = toOrder(*event.Order)
		}
		if event.Previous.Validate() == nil {
			change.Previous = event.Previous.String()
		}
		payload = change
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, event.Kind, data)
	return err
}

package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/oceanobs/objstore/internal/metrics"
)

// wsUpgrader allows any origin — subscribeCommits is a read-only
// change feed, not an authenticated endpoint (spec's access control
// non-goal).
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleSubscribeCommits is the subscribeCommits WebSocket endpoint
// (SPEC_FULL §4's supplemental notification feed). An optional cursor
// query parameter replays events with seq > cursor before streaming
// live frames.
// GET /rpc/subscribeCommits?cursor=123
func (s *Server) handleSubscribeCommits(c echo.Context) error {
	if s.events == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error":   "service_unavailable",
			"message": "commit notifications not configured",
		})
	}

	var since *int64
	if cursorStr := c.QueryParam("cursor"); cursorStr != "" {
		n, err := strconv.ParseInt(cursorStr, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error":   "bad_request",
				"message": "cursor must be an integer",
			})
		}
		since = &n
	}

	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade error", zap.Error(err))
		return nil
	}
	defer ws.Close()

	ctx := c.Request().Context()

	ch, cancel, err := s.events.Subscribe(ctx, since)
	if err != nil {
		s.logger.Warn("subscribe error", zap.Error(err))
		return nil
	}
	defer cancel()

	metrics.SubscribersActive.Inc()
	defer metrics.SubscribersActive.Dec()

	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case frame, ok := <-ch:
			if !ok {
				return nil
			}
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return nil
			}
		case <-disconnected:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

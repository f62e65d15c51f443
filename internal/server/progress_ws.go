package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"bankrot-parser/internal/domain"
)

const (
	wsQueueSize    = 32
	wsWriteTimeout = 5 * time.Second
)

// handleProgressWS передает события прогресса по WebSocket.
// Параметр batch_id ограничивает поток одним пакетом. Прошлые события не пересылаются.
func (s *Server) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	if s.deps.Broker == nil {
		writeError(w, http.StatusServiceUnavailable, "поток прогресса недоступен")
		return
	}

	// Соединение живет дольше, чем WriteTimeout сервера.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.WarnContext(r.Context(), "Не удалось установить WebSocket-соединение", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	batchID := r.URL.Query().Get("batch_id")

	events := make(chan domain.ProgressEvent, wsQueueSize)
	unsubscribe := s.deps.Broker.Subscribe(func(event domain.ProgressEvent) {
		if batchID != "" && event.BatchID != batchID {
			return
		}
		select {
		case events <- event:
		default:
		}
	})
	defer unsubscribe()

	s.log.DebugContext(ctx, "WebSocket подключен", "batch_id", batchID)
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event := <-events:
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				s.log.DebugContext(ctx, "WebSocket закрыт", "error", err)
				return
			}
		}
	}
}

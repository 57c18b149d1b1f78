package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"antroute/internal/model"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// RunProgressWS streams progress events of one run as JSON text frames. The
// last frame has type "completed"; the server then closes the connection.
func (s *Server) RunProgressWS(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := s.Store.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, r, "Run not found", err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// subscribe before re-reading the status so a run finishing in between
	// is still observed
	ch := s.Broker.Subscribe(runID)
	defer s.Broker.Unsubscribe(runID, ch)
	if run, err = s.Store.GetRun(r.Context(), runID); err == nil && run.Status != model.RunRunning {
		_ = writeFrame(conn, completedEvent(run))
		closeNormal(conn)
		return
	}

	// reader: only control frames are expected; any error ends the stream
	gone := make(chan struct{})
	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := writeFrame(conn, evt); err != nil {
				return
			}
			if evt.Type == eventCompleted {
				closeNormal(conn)
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, evt model.ProgressEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(evt)
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

func completedEvent(run model.Run) model.ProgressEvent {
	return model.ProgressEvent{
		RunID:  run.ID,
		Type:   eventCompleted,
		Status: run.Status,
		ProgressPoint: model.ProgressPoint{
			ElapsedMs:  run.ElapsedMs,
			BestCost:   run.Cost,
			BestRoutes: run.RouteCount,
		},
	}
}

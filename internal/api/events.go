package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/tally/internal/events"
	"github.com/smazurov/tally/internal/gpio"
)

// SourceSnapshot marks the line state sent when an SSE client connects.
const SourceSnapshot = "snapshot"

func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of tally line changes and stream state reports",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"line-changed":         events.LineChangedEvent{},
		"stream-state-changed": events.StreamStateChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 16)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.LineChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamStateChangedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if snapshot, ok := s.lineSnapshot(); ok {
			if err := send.Data(snapshot); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

// lineSnapshot reads the current level when the line is ready.
func (s *Server) lineSnapshot() (events.LineChangedEvent, bool) {
	line := s.options.Line
	if line == nil || line.State() != gpio.StateReady {
		return events.LineChangedEvent{}, false
	}
	value, err := line.Value()
	if err != nil {
		s.logger.Debug("Skipping SSE line snapshot", "error", err)
		return events.LineChangedEvent{}, false
	}
	return events.LineChangedEvent{
		Line:      line.Number(),
		Value:     value,
		Source:    SourceSnapshot,
		Timestamp: time.Now().Format(time.RFC3339),
	}, true
}

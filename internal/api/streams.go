package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/tally/internal/api/models"
	"github.com/smazurov/tally/internal/events"
)

// registerStreamRoutes registers the webhook the streaming host calls when a
// stream goes live or idle. The update is applied asynchronously through the
// event bus.
func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "set-stream-state",
		Method:        http.MethodPost,
		Path:          "/api/streams/{stream_id}/state",
		Summary:       "Report stream state",
		Description:   "Mark a stream live or idle. The tally is on while any stream is live.",
		Tags:          []string{"streams"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{400, 401, 422},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.StreamStateRequest) (*struct{}, error) {
		s.eventBus.Publish(events.StreamStateChangedEvent{
			StreamID:  input.StreamID,
			Active:    input.Body.Active,
			Timestamp: time.Now().Format(time.RFC3339),
		})
		s.logger.Debug("Stream state reported", "stream_id", input.StreamID, "active", input.Body.Active)
		return &struct{}{}, nil
	})
}

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/tally/internal/api/models"
	"github.com/smazurov/tally/internal/events"
	"github.com/smazurov/tally/internal/gpio"
)

// SourceAPI marks line changes made through the HTTP API.
const SourceAPI = "api"

const defaultBlinkPeriod = time.Second

func (s *Server) registerGPIORoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-gpio",
		Method:      http.MethodGet,
		Path:        "/api/gpio",
		Summary:     "Get GPIO line",
		Description: "Report the lifecycle state of the tally line and, when ready, its current level",
		Tags:        []string{"gpio"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.LineResponse, error) {
		line := s.options.Line
		state := line.State()
		data := models.LineData{
			Line:  line.Number(),
			State: state.String(),
		}
		if state != gpio.StateReady {
			return &models.LineResponse{Body: data}, nil
		}

		value, err := line.Value()
		if err != nil {
			return nil, lineError("Failed to read GPIO value", err)
		}
		data.Value = value
		return &models.LineResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-gpio",
		Method:      http.MethodPut,
		Path:        "/api/gpio",
		Summary:     "Set GPIO line",
		Description: "Drive the tally line high or low. The next stream state change overrides it.",
		Tags:        []string{"gpio"},
		Errors:      []int{400, 401, 409, 422, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SetLineRequest) (*models.LineResponse, error) {
		if err := s.options.Line.SetValue(input.Body.Value); err != nil {
			return nil, lineError("Failed to write GPIO value", err)
		}
		s.publishLine(input.Body.Value)
		return s.lineResponse(input.Body.Value), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "toggle-gpio",
		Method:      http.MethodPost,
		Path:        "/api/gpio/toggle",
		Summary:     "Toggle GPIO line",
		Description: "Invert the current level of the tally line",
		Tags:        []string{"gpio"},
		Errors:      []int{401, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.LineResponse, error) {
		value, err := s.options.Line.Toggle()
		if err != nil {
			return nil, lineError("Failed to toggle GPIO line", err)
		}
		s.publishLine(value)
		return s.lineResponse(value), nil
	})
}

func (s *Server) registerTallyRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-tally",
		Method:      http.MethodGet,
		Path:        "/api/tally",
		Summary:     "Get tally state",
		Description: "List the streams currently holding the tally on",
		Tags:        []string{"tally"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.TallyResponse, error) {
		return s.tallyResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "blink-gpio",
		Method:        http.MethodPost,
		Path:          "/api/gpio/blink",
		Summary:       "Blink tally",
		Description:   "Blink the tally line count times, then restore the level implied by live streams",
		Tags:          []string{"gpio", "tally"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{400, 401, 422},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.BlinkRequest) (*models.TallyResponse, error) {
		period := defaultBlinkPeriod
		if input.Body.PeriodMs > 0 {
			period = time.Duration(input.Body.PeriodMs) * time.Millisecond
		}
		if err := s.options.Tally.Blink(input.Body.Count, period); err != nil {
			return nil, huma.Error400BadRequest("Invalid blink request", err)
		}
		return s.tallyResponse(), nil
	})
}

func (s *Server) lineResponse(value bool) *models.LineResponse {
	line := s.options.Line
	return &models.LineResponse{
		Body: models.LineData{
			Line:  line.Number(),
			State: line.State().String(),
			Value: value,
		},
	}
}

func (s *Server) tallyResponse() *models.TallyResponse {
	return &models.TallyResponse{
		Body: models.TallyData{
			ActiveStreams: s.options.Tally.ActiveStreams(),
			Blinking:      s.options.Tally.Blinking(),
		},
	}
}

func (s *Server) publishLine(value bool) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(events.LineChangedEvent{
		Line:      s.options.Line.Number(),
		Value:     value,
		Source:    SourceAPI,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// lineError maps gpio errors to HTTP status codes: lifecycle misuse is a
// conflict, anything touching sysfs is a server error.
func lineError(msg string, err error) error {
	if errors.Is(err, gpio.ErrNotInitialized) || errors.Is(err, gpio.ErrClosed) {
		return huma.Error409Conflict(msg, err)
	}
	return huma.Error500InternalServerError(msg, err)
}

package server

import (
	"encoding/json"
	"net/http"

	"github.com/berfenger/s2mockrm/internal/core/domain"
	"github.com/berfenger/s2mockrm/pkg/s2"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CapabilitiesResponse struct {
	Details  json.RawMessage   `json:"details"`
	Messages []json.RawMessage `json:"messages"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/state", s.StateHandler)
	e.GET("/capabilities", s.CapabilitiesHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 2*ACTOR_QUERY_TIMEOUT).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) StateHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetSessionStateRequest{}, ACTOR_QUERY_TIMEOUT).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.GetSessionStateResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	if response.HasResponseError() {
		return echo.NewHTTPError(http.StatusInternalServerError, response.GetResponseError().Error())
	}
	return c.JSON(http.StatusOK, response.Snapshot)
}

// CapabilitiesHandler renders the messages the RM sends on selecting its
// control type, in their S2 wire form.
func (s *Server) CapabilitiesHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetCapabilitiesRequest{}, ACTOR_QUERY_TIMEOUT).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.GetCapabilitiesResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	if response.HasResponseError() {
		return echo.NewHTTPError(http.StatusInternalServerError, response.GetResponseError().Error())
	}
	body := CapabilitiesResponse{
		Messages: make([]json.RawMessage, 0, len(response.Messages)),
	}
	if response.Details != nil {
		if body.Details, err = s2.Encode(response.Details); err != nil {
			return err
		}
	}
	for _, msg := range response.Messages {
		data, err := s2.Encode(msg)
		if err != nil {
			return err
		}
		body.Messages = append(body.Messages, data)
	}
	return c.JSON(http.StatusOK, body)
}

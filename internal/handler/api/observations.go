package api

import (
	"errors"
	"time"

	models "MarketPull/internal/domain/models"
	"MarketPull/internal/usecase"
	xhttp "MarketPull/pkg/http"
	xlogger "MarketPull/pkg/logger"
	"MarketPull/pkg/util"

	"github.com/labstack/echo/v4"
)

// ObservationsHandler exposes the stored series and the run trigger over
// HTTP. Instrument ids live in query parameters because forex ids contain a
// slash.
type ObservationsHandler struct {
	logger       *xlogger.Logger
	observations *usecase.ObservationsUseCase
	runner       *usecase.Runner
}

func NewObservationsHandler(logger *xlogger.Logger, observations *usecase.ObservationsUseCase, runner *usecase.Runner) *ObservationsHandler {
	return &ObservationsHandler{logger: logger, observations: observations, runner: runner}
}

func (h *ObservationsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/v1")
	g.GET("/observations/latest", h.Latest)
	g.GET("/observations/range", h.Range)
	g.GET("/stats", h.Stats)
	g.POST("/runs", h.TriggerRun)
}

func (h *ObservationsHandler) Health(c echo.Context) error {
	if err := h.observations.Health(c.Request().Context()); err != nil {
		return xhttp.InternalErrorResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *ObservationsHandler) Latest(c echo.Context) error {
	req := &models.LatestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rec, err := h.observations.GetLatest(c.Request().Context(), models.AssetClass(req.Class), req.Instrument)
	if err != nil {
		h.logger.Error("latest usecase error", xlogger.Error(err))
		return xhttp.InternalErrorResponse(c, err.Error())
	}
	if rec == nil {
		return xhttp.NotFoundResponse(c, "no observations for instrument")
	}
	return xhttp.SuccessResponse(c, rec)
}

func (h *ObservationsHandler) Range(c echo.Context) error {
	req := &models.RangeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	now := time.Now().UTC()
	res, err := h.observations.GetRange(c.Request().Context(), usecase.GetRangeParams{
		Class:      models.AssetClass(req.Class),
		Instrument: req.Instrument,
		From:       xhttp.ParseTimeDefault(req.From, now.Add(-24*time.Hour)),
		To:         xhttp.ParseTimeDefault(req.To, now),
		Limit:      util.ParseIntDefault(req.Limit, 0),
	})
	if err != nil {
		h.logger.Error("range usecase error", xlogger.Error(err))
		return xhttp.InternalErrorResponse(c, err.Error())
	}
	return xhttp.ListResponse(c, res.Records, res.Total)
}

func (h *ObservationsHandler) Stats(c echo.Context) error {
	counts, err := h.observations.GetStats(c.Request().Context())
	if err != nil {
		h.logger.Error("stats usecase error", xlogger.Error(err))
		return xhttp.InternalErrorResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, counts)
}

// TriggerRun kicks off one pipeline pass and blocks until it returns its
// summary. A pass already in flight answers 409.
func (h *ObservationsHandler) TriggerRun(c echo.Context) error {
	summary, err := h.runner.Run(c.Request().Context())
	if err != nil {
		if errors.Is(err, usecase.ErrRunInProgress) {
			return xhttp.ConflictResponse(c, err.Error())
		}
		h.logger.Error("pipeline run error", xlogger.Error(err))
		return xhttp.InternalErrorResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, summary)
}

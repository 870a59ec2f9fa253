package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/itsgiddd/Horus/internal/domain/models"
	"github.com/itsgiddd/Horus/internal/forecast"
	"github.com/itsgiddd/Horus/internal/usecase"
	xhttp "github.com/itsgiddd/Horus/pkg/http"
	xlogger "github.com/itsgiddd/Horus/pkg/logger"
	"github.com/itsgiddd/Horus/pkg/util"
)

// Handler exposes the forecasting engine over HTTP.
type Handler struct {
	logger    *xlogger.Logger
	forecasts *usecase.ForecastUseCase
	scenarios *usecase.ScenarioUseCase
	candles   *usecase.CandlesUseCase
	signals   *usecase.SignalsUseCase
	training  *usecase.TrainingUseCase
	trainer   *usecase.AutoTrainer
}

// NewHandler wires the API surface.
func NewHandler(
	logger *xlogger.Logger,
	forecasts *usecase.ForecastUseCase,
	scenarios *usecase.ScenarioUseCase,
	candles *usecase.CandlesUseCase,
	signals *usecase.SignalsUseCase,
	training *usecase.TrainingUseCase,
	trainer *usecase.AutoTrainer,
) *Handler {
	return &Handler{
		logger:    logger,
		forecasts: forecasts,
		scenarios: scenarios,
		candles:   candles,
		signals:   signals,
		training:  training,
		trainer:   trainer,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	market := e.Group("/api/market")
	market.GET("/candles/:symbol", h.Candles)
	market.GET("/price/:symbol", h.Price)
	market.GET("/advanced-prediction/:symbol", h.Forecast)
	market.GET("/forecast-history/:symbol", h.ForecastHistory)
	market.GET("/scenarios/:symbol", h.Scenarios)

	e.GET("/api/signals/:symbol", h.Signals)

	training := e.Group("/api/training")
	training.POST("/train/:symbol", h.Train)
	training.POST("/start", h.StartTraining)
	training.POST("/stop", h.StopTraining)
	training.GET("/status", h.TrainingStatus)
	training.POST("/symbols", h.AddSymbol)
	training.DELETE("/symbols/:symbol", h.RemoveSymbol)
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// Candles returns recent OHLCV bars, optionally a stored time range when
// from/to are supplied.
func (h *Handler) Candles(c echo.Context) error {
	symbol := c.Param("symbol")
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	fromStr, toStr := c.QueryParam("from"), c.QueryParam("to")
	if fromStr != "" || toStr != "" {
		to := util.ParseTimeDefault(toStr, time.Now().UTC())
		from := util.ParseTimeDefault(fromStr, to.Add(-24*time.Hour))
		from, to = util.AlignFromTo(from, to, req.Timeframe)

		res, err := h.candles.Stored(c.Request().Context(), symbol, req.Timeframe, from, to)
		if err != nil {
			h.logError("stored candles", symbol, err)
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.SuccessResponse(c, res)
	}

	res, err := h.candles.Latest(c.Request().Context(), symbol, req.Timeframe, req.Limit)
	if err != nil {
		h.logError("candles", symbol, err)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Price returns the provider spot price.
func (h *Handler) Price(c echo.Context) error {
	symbol := c.Param("symbol")
	price, err := h.candles.Price(c.Request().Context(), symbol)
	if err != nil {
		h.logError("price", symbol, err)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbol":    symbol,
		"price":     price,
		"timestamp": time.Now().UTC(),
	})
}

// Forecast runs the diffusion (or fallback) forecast for a symbol.
func (h *Handler) Forecast(c echo.Context) error {
	symbol := c.Param("symbol")
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.forecasts.Forecast(c.Request().Context(), symbol, *req)
	if err != nil {
		if errors.Is(err, forecast.ErrInsufficientData) {
			return xhttp.BadRequestResponse(c, err.Error())
		}
		h.logError("forecast", symbol, err)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// ForecastHistory returns recently archived forecasts for a symbol.
func (h *Handler) ForecastHistory(c echo.Context) error {
	symbol := c.Param("symbol")
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 20)

	records, err := h.forecasts.History(c.Request().Context(), symbol, limit)
	if err != nil {
		if errors.Is(err, usecase.ErrArchiveDisabled) {
			return xhttp.NotFoundResponse(c, err.Error())
		}
		h.logError("forecast history", symbol, err)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbol":    symbol,
		"count":     len(records),
		"forecasts": records,
	})
}

// Scenarios runs Monte-Carlo scenario analysis.
func (h *Handler) Scenarios(c echo.Context) error {
	symbol := c.Param("symbol")
	req := &models.ScenarioRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.scenarios.Run(c.Request().Context(), symbol, *req)
	if err != nil {
		h.logError("scenarios", symbol, err)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Signals computes the indicator-based signal and its ensemble breakdown.
func (h *Handler) Signals(c echo.Context) error {
	symbol := c.Param("symbol")
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.signals.Analyze(c.Request().Context(), symbol, req.Timeframe, req.Limit)
	if err != nil {
		h.logError("signals", symbol, err)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Train runs a synchronous training job for one symbol.
func (h *Handler) Train(c echo.Context) error {
	symbol := c.Param("symbol")
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	record, err := h.training.Train(c.Request().Context(), symbol, req.Epochs, req.BatchSize)
	if err != nil {
		if errors.Is(err, forecast.ErrInsufficientData) {
			return xhttp.BadRequestResponse(c, err.Error())
		}
		h.logError("train", symbol, err)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, record)
}

// StartTraining launches the scheduled retraining loop.
func (h *Handler) StartTraining(c echo.Context) error {
	if h.trainer == nil {
		return xhttp.NotFoundResponse(c, "auto trainer not configured")
	}
	h.trainer.Start(context.Background())
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":     "started",
		"is_running": h.trainer.IsRunning(),
	})
}

// StopTraining halts the scheduled retraining loop.
func (h *Handler) StopTraining(c echo.Context) error {
	if h.trainer == nil {
		return xhttp.NotFoundResponse(c, "auto trainer not configured")
	}
	h.trainer.Stop()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":     "stopped",
		"is_running": h.trainer.IsRunning(),
	})
}

// TrainingStatus reports the auto-trainer state.
func (h *Handler) TrainingStatus(c echo.Context) error {
	running := h.trainer != nil && h.trainer.IsRunning()
	return xhttp.SuccessResponse(c, h.training.Status(running))
}

// AddSymbol adds a symbol to the training schedule.
func (h *Handler) AddSymbol(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.training.AddSymbol(req.Symbol) {
		return xhttp.ConflictResponse(c, "symbol already scheduled")
	}
	return xhttp.SuccessResponse(c, map[string]string{"symbol": req.Symbol, "status": "added"})
}

// RemoveSymbol drops a symbol from the training schedule.
func (h *Handler) RemoveSymbol(c echo.Context) error {
	symbol := c.Param("symbol")
	if !h.training.RemoveSymbol(symbol) {
		return xhttp.NotFoundResponse(c, "symbol not scheduled")
	}
	return xhttp.SuccessResponse(c, map[string]string{"symbol": symbol, "status": "removed"})
}

func (h *Handler) logError(op, symbol string, err error) {
	if h.logger != nil {
		h.logger.Error(op+" failed",
			xlogger.String("symbol", symbol),
			xlogger.Error(err),
		)
	}
}

package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"yield-agreement-backend/internal/usecase/governance"
)

type GovernanceHandler struct{ uc *governance.Usecase }

func NewGovernanceHandler(uc *governance.Usecase) *GovernanceHandler {
	return &GovernanceHandler{uc: uc}
}

type controllerReq struct {
	Controller string `json:"controller" validate:"required,hex32"`
}

type roiReq struct {
	AnnualROIBps uint64 `json:"annual_roi_bps" validate:"required,bps"`
}

type gracePeriodReq struct {
	GracePeriodDays uint64 `json:"grace_period_days" validate:"required"`
}

type penaltyRateReq struct {
	DefaultPenaltyRateBps uint64 `json:"default_penalty_rate_bps" validate:"required,bps"`
}

type thresholdReq struct {
	DefaultThreshold uint64 `json:"default_threshold" validate:"required"`
}

type toggleReq struct {
	Allowed *bool `json:"allowed" validate:"required"`
}

type amountReq struct {
	Amount uint64 `json:"amount"`
}

func (h *GovernanceHandler) SetController(c echo.Context) error {
	var req controllerReq
	if rerr := decode(c, &req); rerr != nil {
		return rerr.write(c)
	}
	dto, err := h.uc.SetController(c.Request().Context(), caller(c), req.Controller)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *GovernanceHandler) Controller(c echo.Context) error {
	dto, err := h.uc.Controller(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *GovernanceHandler) AdjustROI(c echo.Context) error {
	var req roiReq
	return h.parameter(c, &req, func(ctx context.Context, who string, id uint64) (*governance.ParameterDTO, error) {
		return h.uc.AdjustROI(ctx, who, id, req.AnnualROIBps)
	})
}

func (h *GovernanceHandler) SetGracePeriod(c echo.Context) error {
	var req gracePeriodReq
	return h.parameter(c, &req, func(ctx context.Context, who string, id uint64) (*governance.ParameterDTO, error) {
		return h.uc.SetGracePeriod(ctx, who, id, req.GracePeriodDays)
	})
}

func (h *GovernanceHandler) SetPenaltyRate(c echo.Context) error {
	var req penaltyRateReq
	return h.parameter(c, &req, func(ctx context.Context, who string, id uint64) (*governance.ParameterDTO, error) {
		return h.uc.SetPenaltyRate(ctx, who, id, req.DefaultPenaltyRateBps)
	})
}

func (h *GovernanceHandler) SetDefaultThreshold(c echo.Context) error {
	var req thresholdReq
	return h.parameter(c, &req, func(ctx context.Context, who string, id uint64) (*governance.ParameterDTO, error) {
		return h.uc.SetDefaultThreshold(ctx, who, id, req.DefaultThreshold)
	})
}

func (h *GovernanceHandler) SetAllowPartial(c echo.Context) error {
	var req toggleReq
	return h.parameter(c, &req, func(ctx context.Context, who string, id uint64) (*governance.ParameterDTO, error) {
		return h.uc.SetAllowPartial(ctx, who, id, *req.Allowed)
	})
}

func (h *GovernanceHandler) SetAllowEarly(c echo.Context) error {
	var req toggleReq
	return h.parameter(c, &req, func(ctx context.Context, who string, id uint64) (*governance.ParameterDTO, error) {
		return h.uc.SetAllowEarly(ctx, who, id, *req.Allowed)
	})
}

func (h *GovernanceHandler) AllocateReserve(c echo.Context) error {
	var req amountReq
	return h.reserve(c, &req, func(ctx context.Context, who string, id uint64) (*governance.ReserveDTO, error) {
		return h.uc.AllocateReserve(ctx, who, id, req.Amount)
	})
}

func (h *GovernanceHandler) WithdrawReserve(c echo.Context) error {
	var req amountReq
	return h.reserve(c, &req, func(ctx context.Context, who string, id uint64) (*governance.ReserveDTO, error) {
		return h.uc.WithdrawReserve(ctx, who, id, req.Amount)
	})
}

func (h *GovernanceHandler) parameter(c echo.Context, req any, fn func(ctx context.Context, who string, id uint64) (*governance.ParameterDTO, error)) error {
	id, err := agreementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if rerr := decode(c, req); rerr != nil {
		return rerr.write(c)
	}
	dto, err := fn(c.Request().Context(), caller(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *GovernanceHandler) reserve(c echo.Context, req any, fn func(ctx context.Context, who string, id uint64) (*governance.ReserveDTO, error)) error {
	id, err := agreementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if rerr := decode(c, req); rerr != nil {
		return rerr.write(c)
	}
	dto, err := fn(c.Request().Context(), caller(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"yield-agreement-backend/internal/usecase/delinquency"
)

type DelinquencyHandler struct{ uc *delinquency.Usecase }

func NewDelinquencyHandler(uc *delinquency.Usecase) *DelinquencyHandler {
	return &DelinquencyHandler{uc: uc}
}

// MissedPayment records a missed installment. Keepers and admins only.
func (h *DelinquencyHandler) MissedPayment(c echo.Context) error {
	id, err := agreementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	dto, err := h.uc.HandleMissedPayment(c.Request().Context(), caller(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// DefaultStatus lets anyone trigger the lazy default check.
func (h *DelinquencyHandler) DefaultStatus(c echo.Context) error {
	id, err := agreementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	dto, err := h.uc.CheckAndUpdateDefaultStatus(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

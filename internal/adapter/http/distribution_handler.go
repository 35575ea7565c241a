package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"yield-agreement-backend/internal/usecase/distribution"
	"yield-agreement-backend/pkg/id"
)

type DistributionHandler struct{ uc *distribution.Usecase }

func NewDistributionHandler(uc *distribution.Usecase) *DistributionHandler {
	return &DistributionHandler{uc: uc}
}

func (h *DistributionHandler) Unclaimed(c echo.Context) error {
	agreement, err := agreementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	holder := c.Param("holder")
	if !id.Valid(holder) {
		return badRequest(c, "invalid holder")
	}
	dto, err := h.uc.Unclaimed(c.Request().Context(), agreement, holder)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *DistributionHandler) Claim(c echo.Context) error {
	agreement, err := agreementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	holder := c.Param("holder")
	if !id.Valid(holder) {
		return badRequest(c, "invalid holder")
	}
	dto, err := h.uc.Claim(c.Request().Context(), caller(c), agreement, holder)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

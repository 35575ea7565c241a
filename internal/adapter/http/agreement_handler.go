package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"yield-agreement-backend/internal/usecase/agreement"
)

type AgreementHandler struct{ uc *agreement.Usecase }

func NewAgreementHandler(uc *agreement.Usecase) *AgreementHandler {
	return &AgreementHandler{uc: uc}
}

func (h *AgreementHandler) Create(c echo.Context) error {
	var req agreement.CreateInput
	if rerr := decode(c, &req); rerr != nil {
		return rerr.write(c)
	}
	dto, err := h.uc.Create(c.Request().Context(), caller(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *AgreementHandler) Get(c echo.Context) error {
	id, err := agreementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	dto, err := h.uc.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *AgreementHandler) Obligations(c echo.Context) error {
	id, err := agreementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	dto, err := h.uc.Obligations(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *AgreementHandler) Reserve(c echo.Context) error {
	id, err := agreementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	dto, err := h.uc.Reserve(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *AgreementHandler) LastMissedPayment(c echo.Context) error {
	id, err := agreementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	dto, err := h.uc.LastMissedPayment(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *AgreementHandler) Events(c echo.Context) error {
	id, err := agreementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	recs, err := h.uc.Events(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"agreement_id": id, "events": recs})
}

package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"yield-agreement-backend/internal/usecase/repayment"
)

type PaymentHandler struct{ uc *repayment.Usecase }

func NewPaymentHandler(uc *repayment.Usecase) *PaymentHandler { return &PaymentHandler{uc: uc} }

// paymentReq carries the attached value. Zero is left to the payment rules.
type paymentReq struct {
	Amount uint64 `json:"amount"`
}

type payFunc func(ctx context.Context, in repayment.PaymentInput) (*repayment.PaymentDTO, error)

func (h *PaymentHandler) Standard(c echo.Context) error { return h.pay(c, h.uc.MakeStandardPayment) }
func (h *PaymentHandler) Partial(c echo.Context) error  { return h.pay(c, h.uc.MakePartialPayment) }
func (h *PaymentHandler) Early(c echo.Context) error    { return h.pay(c, h.uc.MakeEarlyPayment) }

func (h *PaymentHandler) pay(c echo.Context, fn payFunc) error {
	id, err := agreementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req paymentReq
	if rerr := decode(c, &req); rerr != nil {
		return rerr.write(c)
	}
	dto, err := fn(c.Request().Context(), repayment.PaymentInput{
		Caller:      caller(c),
		AgreementID: id,
		Amount:      req.Amount,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

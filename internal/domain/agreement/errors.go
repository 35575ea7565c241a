package agreement

import "yield-agreement-backend/internal/domain/apperr"

var (
	ErrNotFound           = apperr.New(apperr.KindNotFound, "agreement not found")
	ErrInactive           = apperr.New(apperr.KindInvalidState, "agreement inactive")
	ErrInDefault          = apperr.New(apperr.KindInvalidState, "agreement in default")
	ErrNotOverdue         = apperr.New(apperr.KindInvalidState, "agreement not overdue")
	ErrPartialNotAllowed  = apperr.New(apperr.KindInvalidState, "partial repayments not allowed")
	ErrEarlyNotAllowed    = apperr.New(apperr.KindInvalidState, "early repayment not allowed")
	ErrUnauthorized       = apperr.New(apperr.KindUnauthorized, "unauthorized")
	ErrInvalidAmount      = apperr.New(apperr.KindValidation, "invalid amount")
	ErrInsufficientAmount = apperr.New(apperr.KindValidation, "insufficient amount")
	ErrInvalidParameter   = apperr.New(apperr.KindValidation, "parameter out of range")
	ErrInvalidHolders     = apperr.New(apperr.KindValidation, "invalid holder allocation")

	ErrReserveExceedsLimit = apperr.New(apperr.KindValidation, "reserve exceeds limit")
	ErrInsufficientReserve = apperr.New(apperr.KindValidation, "insufficient reserve")
)

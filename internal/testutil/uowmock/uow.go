package uowmock

import (
	"context"
	"errors"

	"yield-agreement-backend/internal/domain/agreement"
	"yield-agreement-backend/internal/domain/uow"
)

// Ensure compile-time compliance
var _ uow.UnitOfWork = (*UoW)(nil)

var errUnimplemented = errors.New("uowmock: method not implemented")

// UoW is a function-backed mock that satisfies uow.UnitOfWork.
// Fill in the function fields you need in a test; unfilled ones return errUnimplemented.
type UoW struct {
	WithinTxFn          func(ctx context.Context, fn func(r uow.Repos) error) error
	WithinAgreementTxFn func(ctx context.Context, agreementID uint64, fn func(r uow.Repos, a *agreement.YieldAgreement) error) error
}

// Convenience fluent setters
func New() *UoW { return &UoW{} }
func (m *UoW) WithWithinTx(fn func(context.Context, func(uow.Repos) error) error) *UoW {
	m.WithinTxFn = fn
	return m
}
func (m *UoW) WithWithinAgreementTx(fn func(context.Context, uint64, func(uow.Repos, *agreement.YieldAgreement) error) error) *UoW {
	m.WithinAgreementTxFn = fn
	return m
}
func (m *UoW) Reset() { *m = UoW{} }

// Fixed serves every call with the same repos and agreement, as a committed tx would.
func Fixed(repos uow.Repos, a *agreement.YieldAgreement) *UoW {
	return New().
		WithWithinTx(func(_ context.Context, fn func(uow.Repos) error) error { return fn(repos) }).
		WithWithinAgreementTx(func(_ context.Context, _ uint64, fn func(uow.Repos, *agreement.YieldAgreement) error) error {
			return fn(repos, a)
		})
}

// Methods implementing UnitOfWork
func (m *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return errUnimplemented
}
func (m *UoW) WithinAgreementTx(ctx context.Context, agreementID uint64, fn func(r uow.Repos, a *agreement.YieldAgreement) error) error {
	if m.WithinAgreementTxFn != nil {
		return m.WithinAgreementTxFn(ctx, agreementID, fn)
	}
	return errUnimplemented
}

package repayment

import (
	"context"
	"strings"
	"testing"
	"time"

	"yield-agreement-backend/internal/adapter/repository/mysql"
	"yield-agreement-backend/internal/domain/access"
	"yield-agreement-backend/internal/domain/agreement"
	"yield-agreement-backend/internal/domain/apperr"
	"yield-agreement-backend/internal/domain/compliance"
	"yield-agreement-backend/internal/domain/event"
	"yield-agreement-backend/internal/domain/guard"
	"yield-agreement-backend/internal/domain/uow"
	"yield-agreement-backend/internal/testutil/testdb"
	"yield-agreement-backend/internal/usecase/distribution"
	"yield-agreement-backend/internal/usecase/runner"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	payer    = "11111111111111111111111111111111"
	admin    = "22222222222222222222222222222222"
	stranger = "33333333333333333333333333333333"
	holderA  = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	holderB  = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

type fixture struct {
	db    *gorm.DB
	tx    uow.UnitOfWork
	uc    *Usecase
	id    uint64
	clock time.Time
}

func (f *fixture) now() time.Time { return f.clock }

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *fixture) reload(t *testing.T) *agreement.YieldAgreement { return testdb.Reload(t, f.db, f.id) }

func (f *fixture) events(t *testing.T) []string {
	t.Helper()
	var types []string
	require.NoError(t, f.tx.WithinTx(context.Background(), func(r uow.Repos) error {
		recs, err := r.Events.ListByAgreement(context.Background(), f.id)
		for _, rec := range recs {
			types = append(types, rec.Type)
		}
		return err
	}))
	return types
}

func (f *fixture) supply(t *testing.T) uint64 {
	t.Helper()
	var total uint64
	require.NoError(t, f.tx.WithinTx(context.Background(), func(r uow.Repos) error {
		var err error
		total, err = r.Shares.TotalSupply(context.Background(), f.id)
		return err
	}))
	return total
}

// newFixture builds the scenario agreement: 1_200_000 over 12 months at 5%,
// monthly payment 105_000, held 60/40 by two holders.
func newFixture(t *testing.T, mutate ...func(*agreement.YieldAgreement)) *fixture {
	t.Helper()
	db, tx := testdb.Open(t)
	f := &fixture{db: db, tx: tx, clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}

	a := &agreement.YieldAgreement{
		UpfrontCapital:         1_200_000,
		RepaymentTermMonths:    12,
		AnnualROIBps:           500,
		AuthorizedPayer:        payer,
		LastRepaymentTimestamp: f.clock.Unix(),
		GracePeriodDays:        30,
		DefaultPenaltyRateBps:  200,
		DefaultThreshold:       3,
		AllowPartialRepayments: false,
		AllowEarlyRepayment:    true,
		IsActive:               true,
	}
	for _, m := range mutate {
		m(a)
	}
	f.id = testdb.Agreement(t, db, a)
	testdb.Shares(t, db, f.id, map[string]uint64{holderA: 60, holderB: 40})
	testdb.Compliant(t, db, payer, admin)

	run := runner.New(tx, runner.WithClock(f.now))
	f.uc = NewUsecase(run, distribution.NewEngine(nil, nil), access.NewPolicy([]string{admin}, nil), DefaultRebateBps)
	return f
}

func allowPartial(a *agreement.YieldAgreement) { a.AllowPartialRepayments = true }

func TestStandardPayment_TwelveInstallmentsComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 12; i++ {
		f.advance(30 * 24 * time.Hour)
		dto, err := f.uc.MakeStandardPayment(ctx, PaymentInput{Caller: payer, AgreementID: f.id, Amount: 105_000})
		require.NoError(t, err, "installment %d", i)
		require.Equal(t, uint64(105_000), dto.Distributed)
		require.Equal(t, uint64(105_000*i), dto.TotalRepaid)
		require.Equal(t, i == 12, dto.Completed, "installment %d", i)
	}

	a := f.reload(t)
	require.False(t, a.IsActive)
	require.Equal(t, uint64(1_260_000), a.TotalRepaid)
	require.Zero(t, f.supply(t))
	require.Equal(t, uint64(63_000*12), testdb.FundBalance(t, f.db, holderA))
	require.Equal(t, uint64(42_000*12), testdb.FundBalance(t, f.db, holderB))

	types := f.events(t)
	require.Len(t, types, 13)
	require.Equal(t, event.TypeAgreementCompleted, types[12])

	_, err := f.uc.MakeStandardPayment(ctx, PaymentInput{Caller: payer, AgreementID: f.id, Amount: 105_000})
	require.ErrorIs(t, err, agreement.ErrInactive)
	require.Len(t, f.events(t), 13)
}

func TestStandardPayment_OverpaymentCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.uc.MakeStandardPayment(ctx, PaymentInput{Caller: payer, AgreementID: f.id, Amount: 200_000})
	require.NoError(t, err)
	require.Equal(t, uint64(105_000), first.Distributed)
	require.Equal(t, uint64(95_000), first.OverpaymentCredit)
	require.Equal(t, uint64(105_000), first.TotalRepaid)

	// the credit is consumed from the attached amount before anything is distributed
	second, err := f.uc.MakeStandardPayment(ctx, PaymentInput{Caller: payer, AgreementID: f.id, Amount: 105_000})
	require.NoError(t, err)
	require.Equal(t, uint64(95_000), second.CreditConsumed)
	require.Equal(t, uint64(10_000), second.Distributed)
	require.Zero(t, second.OverpaymentCredit)
	require.Equal(t, uint64(115_000), second.TotalRepaid)
}

func TestStandardPayment_CreditReconciliation(t *testing.T) {
	tests := []struct {
		name        string
		priorCredit uint64
		paid        uint64
		wantCredit  uint64
		wantDist    uint64
	}{
		{"exact no credit", 0, 105_000, 0, 105_000},
		{"overpay no credit", 0, 150_000, 45_000, 105_000},
		{"credit larger than payment", 200_000, 105_000, 95_000, 0},
		{"credit then overpay", 20_000, 200_000, 95_000, 105_000},
		{"credit then large overpay", 50_000, 300_000, 195_000, 105_000},
		{"credit then short of monthly", 20_000, 105_000, 0, 85_000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, func(a *agreement.YieldAgreement) { a.OverpaymentCredit = tc.priorCredit })
			dto, err := f.uc.MakeStandardPayment(context.Background(), PaymentInput{Caller: payer, AgreementID: f.id, Amount: tc.paid})
			require.NoError(t, err)
			require.Equal(t, tc.wantCredit, dto.OverpaymentCredit)
			require.Equal(t, tc.wantDist, dto.Distributed)
			require.Equal(t, dto.Distributed, dto.TotalRepaid)
			require.Equal(t, dto.Distributed, dto.Distribution.Amount)
		})
	}
}

func TestStandardPayment_CreditFromPriorAndExcess(t *testing.T) {
	f := newFixture(t, func(a *agreement.YieldAgreement) { a.OverpaymentCredit = 20_000 })

	dto, err := f.uc.MakeStandardPayment(context.Background(), PaymentInput{Caller: payer, AgreementID: f.id, Amount: 200_000})
	require.NoError(t, err)
	require.Equal(t, uint64(20_000), dto.CreditConsumed)
	require.Equal(t, uint64(105_000), dto.Distributed)
	// unconsumed prior credit (0) plus the excess over the monthly payment
	require.Equal(t, uint64(95_000), dto.OverpaymentCredit)

	a := f.reload(t)
	require.Equal(t, uint64(95_000), a.OverpaymentCredit)
	require.Equal(t, uint64(105_000), a.TotalRepaid)
	require.Equal(t, uint64(63_000), testdb.FundBalance(t, f.db, holderA))
	require.Equal(t, uint64(42_000), testdb.FundBalance(t, f.db, holderB))
}

func TestStandardPayment_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*agreement.YieldAgreement)
		caller string
		amount uint64
		want   error
	}{
		{"underpayment without partials", nil, payer, 50_000, agreement.ErrInvalidAmount},
		{"zero amount", nil, payer, 0, agreement.ErrInvalidAmount},
		{"stranger", nil, stranger, 105_000, agreement.ErrUnauthorized},
		{"inactive", func(a *agreement.YieldAgreement) { a.IsActive = false }, payer, 105_000, agreement.ErrInactive},
		{"in default", func(a *agreement.YieldAgreement) { a.IsInDefault = true }, payer, 105_000, agreement.ErrInDefault},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var mutate []func(*agreement.YieldAgreement)
			if tc.mutate != nil {
				mutate = append(mutate, tc.mutate)
			}
			f := newFixture(t, mutate...)
			before := f.reload(t)

			_, err := f.uc.MakeStandardPayment(context.Background(), PaymentInput{Caller: tc.caller, AgreementID: f.id, Amount: tc.amount})
			require.ErrorIs(t, err, tc.want)

			after := f.reload(t)
			require.Equal(t, before.TotalRepaid, after.TotalRepaid)
			require.Equal(t, before.OverpaymentCredit, after.OverpaymentCredit)
			require.Empty(t, f.events(t))
		})
	}
}

func TestStandardPayment_UnknownAgreement(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.MakeStandardPayment(context.Background(), PaymentInput{Caller: payer, AgreementID: f.id + 1, Amount: 105_000})
	require.ErrorIs(t, err, agreement.ErrNotFound)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestStandardPayment_AdminMayPay(t *testing.T) {
	f := newFixture(t)
	dto, err := f.uc.MakeStandardPayment(context.Background(), PaymentInput{Caller: admin, AgreementID: f.id, Amount: 105_000})
	require.NoError(t, err)
	require.Equal(t, uint64(105_000), dto.TotalRepaid)
}

func TestStandardPayment_Compliance(t *testing.T) {
	t.Run("payer not registered", func(t *testing.T) {
		f := newFixture(t, func(a *agreement.YieldAgreement) { a.AuthorizedPayer = stranger })
		_, err := f.uc.MakeStandardPayment(context.Background(), PaymentInput{Caller: stranger, AgreementID: f.id, Amount: 105_000})
		require.ErrorIs(t, err, compliance.ErrCheckFailed)
	})
	t.Run("payer blacklisted", func(t *testing.T) {
		f := newFixture(t)
		testdb.Blacklisted(t, f.db, payer)
		_, err := f.uc.MakeStandardPayment(context.Background(), PaymentInput{Caller: payer, AgreementID: f.id, Amount: 105_000})
		require.ErrorIs(t, err, compliance.ErrCheckFailed)
		require.Zero(t, f.reload(t).TotalRepaid)
	})
}

func TestStandardPayment_CallerCaseInsensitive(t *testing.T) {
	const mixed = "dddddddddddddddddddddddddddddddd"
	f := newFixture(t, func(a *agreement.YieldAgreement) { a.AuthorizedPayer = mixed })
	testdb.Compliant(t, f.db, mixed)

	dto, err := f.uc.MakeStandardPayment(context.Background(), PaymentInput{Caller: strings.ToUpper(mixed), AgreementID: f.id, Amount: 105_000})
	require.NoError(t, err)
	require.Equal(t, uint64(105_000), dto.TotalRepaid)
}

func TestPayments_RegistryNotConfigured(t *testing.T) {
	f := newFixture(t, allowPartial)
	uc := NewUsecase(runner.New(mysql.NewGormUoW(f.db), runner.WithClock(f.now)), distribution.NewEngine(nil, nil), access.NewPolicy([]string{admin}, nil), DefaultRebateBps)
	before := f.reload(t)

	pay := map[string]func(context.Context, PaymentInput) (*PaymentDTO, error){
		"standard": uc.MakeStandardPayment,
		"partial":  uc.MakePartialPayment,
		"early":    uc.MakeEarlyPayment,
	}
	for name, fn := range pay {
		t.Run(name, func(t *testing.T) {
			_, err := fn(context.Background(), PaymentInput{Caller: payer, AgreementID: f.id, Amount: 1_300_000})
			require.ErrorIs(t, err, compliance.ErrRegistryNotConfigured)
			require.Equal(t, apperr.KindCompliance, apperr.KindOf(err))

			after := f.reload(t)
			require.Equal(t, before.TotalRepaid, after.TotalRepaid)
			require.Equal(t, before.OverpaymentCredit, after.OverpaymentCredit)
			require.Equal(t, before.AccumulatedArrears, after.AccumulatedArrears)
			require.True(t, after.IsActive)
			require.Empty(t, f.events(t))
			require.Zero(t, testdb.FundBalance(t, f.db, holderA))
		})
	}
}

func TestStandardPayment_ResetsMissedCount(t *testing.T) {
	f := newFixture(t, func(a *agreement.YieldAgreement) { a.MissedPaymentCount = 2 })
	f.advance(time.Hour)

	_, err := f.uc.MakeStandardPayment(context.Background(), PaymentInput{Caller: payer, AgreementID: f.id, Amount: 105_000})
	require.NoError(t, err)

	a := f.reload(t)
	require.Zero(t, a.MissedPaymentCount)
	require.Equal(t, f.clock.Unix(), a.LastRepaymentTimestamp)
}

func TestStandardPayment_GuardHeld(t *testing.T) {
	f := newFixture(t)
	g := guard.NewLocal()
	release, err := g.Enter(context.Background())
	require.NoError(t, err)
	defer release()

	uc := NewUsecase(runner.New(f.tx, runner.WithGuard(g)), distribution.NewEngine(nil, nil), access.NewPolicy(nil, nil), DefaultRebateBps)
	_, err = uc.MakeStandardPayment(context.Background(), PaymentInput{Caller: payer, AgreementID: f.id, Amount: 105_000})
	require.ErrorIs(t, err, guard.ErrReentrantCall)
	require.Zero(t, f.reload(t).TotalRepaid)
}

func TestPartialPayment_ShortfallBecomesArrears(t *testing.T) {
	f := newFixture(t, allowPartial)
	ctx := context.Background()

	dto, err := f.uc.MakePartialPayment(ctx, PaymentInput{Caller: payer, AgreementID: f.id, Amount: 50_000})
	require.NoError(t, err)
	require.Zero(t, dto.ArrearsPayment)
	require.Equal(t, uint64(50_000), dto.CurrentPayment)
	require.Equal(t, uint64(55_000), dto.AccumulatedArrears)
	require.Equal(t, uint64(50_000), dto.TotalRepaid)
	require.Equal(t, uint64(30_000), testdb.FundBalance(t, f.db, holderA))

	dto, err = f.uc.MakePartialPayment(ctx, PaymentInput{Caller: payer, AgreementID: f.id, Amount: 160_000})
	require.NoError(t, err)
	require.Equal(t, uint64(55_000), dto.ArrearsPayment)
	require.Equal(t, uint64(105_000), dto.CurrentPayment)
	require.Zero(t, dto.AccumulatedArrears)
	require.Equal(t, uint64(210_000), dto.TotalRepaid)

	require.Equal(t, []string{event.TypePartialRepaymentMade, event.TypePartialRepaymentMade}, f.events(t))
}

func TestPartialPayment_Rejections(t *testing.T) {
	t.Run("not allowed", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.uc.MakePartialPayment(context.Background(), PaymentInput{Caller: payer, AgreementID: f.id, Amount: 50_000})
		require.ErrorIs(t, err, agreement.ErrPartialNotAllowed)
	})
	t.Run("zero", func(t *testing.T) {
		f := newFixture(t, allowPartial)
		_, err := f.uc.MakePartialPayment(context.Background(), PaymentInput{Caller: payer, AgreementID: f.id, Amount: 0})
		require.ErrorIs(t, err, agreement.ErrInvalidAmount)
	})
	t.Run("in default", func(t *testing.T) {
		f := newFixture(t, allowPartial, func(a *agreement.YieldAgreement) { a.IsInDefault = true })
		_, err := f.uc.MakePartialPayment(context.Background(), PaymentInput{Caller: payer, AgreementID: f.id, Amount: 50_000})
		require.ErrorIs(t, err, agreement.ErrInDefault)
	})
}

func TestPartialPayment_CompletesAgreement(t *testing.T) {
	f := newFixture(t, allowPartial, func(a *agreement.YieldAgreement) { a.TotalRepaid = 1_250_000 })
	dto, err := f.uc.MakePartialPayment(context.Background(), PaymentInput{Caller: payer, AgreementID: f.id, Amount: 10_000})
	require.NoError(t, err)
	require.True(t, dto.Completed)
	require.Equal(t, []string{event.TypePartialRepaymentMade, event.TypeAgreementCompleted}, f.events(t))
	require.Zero(t, f.supply(t))
}

func TestEarlyPayment_SettlesAndRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dto, err := f.uc.MakeEarlyPayment(ctx, PaymentInput{Caller: payer, AgreementID: f.id, Amount: 1_300_000})
	require.NoError(t, err)
	// interest is not modelled separately, so the rebate is zero
	require.Zero(t, dto.Rebate)
	require.Equal(t, uint64(1_260_000), dto.Distributed)
	require.Equal(t, uint64(40_000), dto.Refunded)
	require.True(t, dto.Completed)

	a := f.reload(t)
	require.False(t, a.IsActive)
	require.Equal(t, uint64(1_260_000), a.TotalRepaid)
	require.Equal(t, uint64(1_260_000), a.PrepaymentAmount)
	require.Zero(t, a.OverpaymentCredit)
	require.Equal(t, uint64(40_000), testdb.FundBalance(t, f.db, payer))
	require.Equal(t, uint64(756_000), testdb.FundBalance(t, f.db, holderA))
	require.Zero(t, f.supply(t))
	require.Equal(t, []string{event.TypeEarlyRepaymentMade, event.TypeAgreementCompleted}, f.events(t))
}

func TestEarlyPayment_RejectedRefundKeptAsCredit(t *testing.T) {
	f := newFixture(t, func(a *agreement.YieldAgreement) { a.TotalRepaid = 210_000 })
	testdb.Freeze(t, f.db, payer)

	dto, err := f.uc.MakeEarlyPayment(context.Background(), PaymentInput{Caller: payer, AgreementID: f.id, Amount: 1_100_000})
	require.NoError(t, err)
	require.Equal(t, uint64(1_050_000), dto.Distributed)
	require.Zero(t, dto.Refunded)

	a := f.reload(t)
	require.False(t, a.IsActive)
	require.Equal(t, uint64(50_000), a.OverpaymentCredit)
	require.Equal(t, uint64(1_260_000), a.TotalRepaid)
	require.Zero(t, testdb.FundBalance(t, f.db, payer))
}

func TestEarlyPayment_Rejections(t *testing.T) {
	t.Run("insufficient", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.uc.MakeEarlyPayment(context.Background(), PaymentInput{Caller: payer, AgreementID: f.id, Amount: 1_259_999})
		require.ErrorIs(t, err, agreement.ErrInsufficientAmount)
		require.True(t, f.reload(t).IsActive)
	})
	t.Run("not allowed", func(t *testing.T) {
		f := newFixture(t, func(a *agreement.YieldAgreement) { a.AllowEarlyRepayment = false })
		_, err := f.uc.MakeEarlyPayment(context.Background(), PaymentInput{Caller: payer, AgreementID: f.id, Amount: 1_260_000})
		require.ErrorIs(t, err, agreement.ErrEarlyNotAllowed)
	})
	t.Run("in default", func(t *testing.T) {
		f := newFixture(t, func(a *agreement.YieldAgreement) { a.IsInDefault = true })
		_, err := f.uc.MakeEarlyPayment(context.Background(), PaymentInput{Caller: payer, AgreementID: f.id, Amount: 1_260_000})
		require.ErrorIs(t, err, agreement.ErrInDefault)
		require.True(t, f.reload(t).IsInDefault)
	})
}

func TestCheckCompletion_Idempotent(t *testing.T) {
	f := newFixture(t, func(a *agreement.YieldAgreement) { a.TotalRepaid = 1_260_000 })
	ctx := context.Background()

	check := func() bool {
		var done bool
		require.NoError(t, f.tx.WithinAgreementTx(ctx, f.id, func(r uow.Repos, a *agreement.YieldAgreement) error {
			var err error
			done, err = f.uc.checkCompletion(ctx, r, a, event.NewRecorder(r.Events, f.clock.Unix()))
			return err
		}))
		return done
	}

	require.True(t, check())
	require.False(t, check())
	require.Equal(t, []string{event.TypeAgreementCompleted}, f.events(t))
	require.False(t, f.reload(t).IsActive)
}

func TestConservation_TotalRepaidMatchesDistributions(t *testing.T) {
	f := newFixture(t, allowPartial)
	ctx := context.Background()

	var distributed uint64
	steps := []struct {
		partial bool
		amount  uint64
	}{
		{false, 105_000}, {false, 180_000}, {true, 40_000}, {false, 105_000}, {true, 90_000}, {false, 300_000},
	}
	for _, s := range steps {
		pay := f.uc.MakeStandardPayment
		if s.partial {
			pay = f.uc.MakePartialPayment
		}
		dto, err := pay(ctx, PaymentInput{Caller: payer, AgreementID: f.id, Amount: s.amount})
		require.NoError(t, err)
		distributed += dto.Distributed
	}
	require.Equal(t, distributed, f.reload(t).TotalRepaid)

	var minted uint64
	for _, h := range []string{holderA, holderB} {
		minted += testdb.FundBalance(t, f.db, h)
	}
	require.Equal(t, distributed, minted)
}

package http

import "github.com/labstack/echo/v4"

type Handlers struct {
	Health       *HealthHandler
	Agreements   *AgreementHandler
	Payments     *PaymentHandler
	Delinquency  *DelinquencyHandler
	Governance   *GovernanceHandler
	Distribution *DistributionHandler
}

// Register mounts every route. Caller and idempotency middleware are expected
// on e already.
func Register(e *echo.Echo, h Handlers) {
	e.GET("/health", h.Health.Health)

	g := e.Group("/agreements")
	g.POST("", h.Agreements.Create)
	g.GET("/:id", h.Agreements.Get)
	g.GET("/:id/obligations", h.Agreements.Obligations)
	g.GET("/:id/reserve", h.Agreements.Reserve)
	g.GET("/:id/missed-payment", h.Agreements.LastMissedPayment)
	g.GET("/:id/events", h.Agreements.Events)

	g.POST("/:id/payments", h.Payments.Standard)
	g.POST("/:id/payments/partial", h.Payments.Partial)
	g.POST("/:id/payments/early", h.Payments.Early)

	g.POST("/:id/missed-payments", h.Delinquency.MissedPayment)
	g.POST("/:id/default-status", h.Delinquency.DefaultStatus)

	g.POST("/:id/roi", h.Governance.AdjustROI)
	g.POST("/:id/reserve/allocate", h.Governance.AllocateReserve)
	g.POST("/:id/reserve/withdraw", h.Governance.WithdrawReserve)
	g.POST("/:id/grace-period", h.Governance.SetGracePeriod)
	g.POST("/:id/penalty-rate", h.Governance.SetPenaltyRate)
	g.POST("/:id/default-threshold", h.Governance.SetDefaultThreshold)
	g.POST("/:id/partial-repayments", h.Governance.SetAllowPartial)
	g.POST("/:id/early-repayment", h.Governance.SetAllowEarly)

	g.GET("/:id/holders/:holder/unclaimed", h.Distribution.Unclaimed)
	g.POST("/:id/holders/:holder/claim", h.Distribution.Claim)

	e.PUT("/governance/controller", h.Governance.SetController)
	e.GET("/governance/controller", h.Governance.Controller)
}

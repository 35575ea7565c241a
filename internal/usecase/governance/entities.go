package governance

type ControllerDTO struct {
	Controller string `json:"controller"`
}

// ParameterDTO reports one bounded parameter change.
type ParameterDTO struct {
	AgreementID uint64 `json:"agreement_id"`
	Parameter   string `json:"parameter"`
	Old         string `json:"old"`
	New         string `json:"new"`
}

type ReserveDTO struct {
	AgreementID    uint64 `json:"agreement_id"`
	Amount         uint64 `json:"amount"`
	ReserveBalance uint64 `json:"reserve_balance"`
	MaxReserve     uint64 `json:"max_reserve"`
	VaultBalance   uint64 `json:"vault_balance"`
}

const (
	ParamROI              = "annual_roi_bps"
	ParamGracePeriod      = "grace_period_days"
	ParamPenaltyRate      = "default_penalty_rate_bps"
	ParamDefaultThreshold = "default_threshold"
	ParamAllowPartial     = "allow_partial_repayments"
	ParamAllowEarly       = "allow_early_repayment"
)

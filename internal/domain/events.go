package domain

const (
	EventUserRegistered     = "user.registered"
	EventReferralCodeIssued = "referral.code_issued"
	EventCommissionAccrued  = "commission.accrued"
	EventCommissionClaimed  = "commission.claimed"
	EventTradeExecuted      = "trade.executed"
)

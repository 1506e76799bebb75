package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Payment rows are only ever written once money has settled.
const PaymentStatusPaid = "paid"

const (
	OrderStatusPending = "pending"
	OrderStatusSettled = "settled"
)

const (
	PaymentKindTopup = "topup"
	PaymentKindOrder = "order_purchase"
)

// Wallet transaction types.
const (
	TxTypeTopup         = "TOPUP"
	TxTypeReferralBonus = "REFERRAL_BONUS"
)

const (
	NotificationTypeTopup         = "BALANCE_TOPUP"
	NotificationTypeReferralBonus = "REFERRAL_BONUS"
	NotificationTypeOrderPaid     = "ORDER_PAID"
)

// Webhook journal outcomes.
const (
	WebhookOutcomeReceived         = "received"
	WebhookOutcomeIgnored          = "ignored"
	WebhookOutcomeCommitted        = "committed"
	WebhookOutcomeAlreadyProcessed = "already_processed"
	WebhookOutcomeRejected         = "rejected"
	WebhookOutcomeFailed           = "failed"
)

// System setting keys.
const (
	SettingReferralBonusBPS = "referral_bonus_bps"
	SettingReferralMaxBonus = "referral_max_bonuses"
)

const DefaultCurrency = "USD"

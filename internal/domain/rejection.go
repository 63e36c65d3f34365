package domain

// RejectionReason is the machine-readable reason an operation declined to act.
// Rejections are expected outcomes, not errors.
type RejectionReason string

const (
	ReasonNone                 RejectionReason = ""
	ReasonPortfolioInactive    RejectionReason = "PortfolioInactive"
	ReasonLowConfidence        RejectionReason = "LowConfidence"
	ReasonDuplicatePosition    RejectionReason = "DuplicatePosition"
	ReasonBelowReturnThreshold RejectionReason = "BelowReturnThreshold"
	ReasonZeroShares           RejectionReason = "ZeroShares"
	ReasonInsufficientCash     RejectionReason = "InsufficientCash"
	ReasonPriceUnavailable     RejectionReason = "PriceUnavailable"
	ReasonNotYetExecuted       RejectionReason = "NotYetExecuted"
	ReasonNotOpen              RejectionReason = "NotOpen"
)

// RejectionCategory groups reasons for observability.
type RejectionCategory string

const (
	CategoryNone              RejectionCategory = ""
	CategoryPolicyRejection   RejectionCategory = "PolicyRejection"
	CategoryDataUnavailable   RejectionCategory = "DataUnavailable"
	CategoryInsufficientFunds RejectionCategory = "InsufficientFunds"
)

// Category maps a reason onto the error taxonomy.
func (r RejectionReason) Category() RejectionCategory {
	switch r {
	case ReasonNone:
		return CategoryNone
	case ReasonInsufficientCash:
		return CategoryInsufficientFunds
	case ReasonPriceUnavailable:
		return CategoryDataUnavailable
	default:
		return CategoryPolicyRejection
	}
}

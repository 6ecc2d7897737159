package checkout

import "storefront/internal/domain"

type Stage string

const (
	StageShopping Stage = "SHOPPING"
	StageBilling  Stage = "BILLING"
	StagePurchase Stage = "PURCHASE"
	StageFinish   Stage = "FINISH"
)

func (s Stage) String() string { return string(s) }

// DeriveStage projects the persisted draft onto a checkout stage. It reads
// nothing but the draft, so a cleared session always lands on SHOPPING.
func DeriveStage(draft *domain.Order) Stage {
	if draft == nil {
		return StageShopping
	}
	if draft.Draft != nil && !*draft.Draft {
		return StageFinish
	}
	if draft.ShipMethod != "" {
		return StagePurchase
	}
	return StageBilling
}

package affiliate

import (
	"context"

	"pix-case-ledger-go/internal/models"
	"pix-case-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine pays affiliates a flat commission for the first qualifying deposit
// of an account they referred. Exactly-once is enforced by the store's
// conditional claim, so calling MaybeCreditCommission on every approved
// deposit is safe.
type Engine struct {
	store store.Store
	cfg   models.AffiliateConfig
}

func NewEngine(st store.Store, cfg models.AffiliateConfig) *Engine {
	return &Engine{store: st, cfg: cfg}
}

// MaybeCreditCommission credits the referring affiliate when this deposit is
// the referred account's first at or above the qualifying minimum. Returns
// true only when a commission was actually paid out.
func (e *Engine) MaybeCreditCommission(ctx context.Context, referredAccountId string, depositAmount decimal.Decimal) (bool, error) {
	link, err := e.store.GetReferralLink(ctx, referredAccountId)
	if err != nil {
		return false, err
	}
	if link == nil {
		return false, nil
	}
	if depositAmount.LessThan(e.cfg.MinQualifyingDeposit) {
		return false, nil
	}

	credited, err := e.store.CreditCommission(ctx, referredAccountId, e.cfg.CommissionAmount)
	if err != nil {
		return false, err
	}
	if credited {
		zap.L().Info("Referral commission paid",
			zap.String("affiliate_account_id", link.AffiliateAccountId),
			zap.String("referred_account_id", referredAccountId),
			zap.String("deposit_amount", depositAmount.String()),
			zap.String("commission", e.cfg.CommissionAmount.String()))
	}
	return credited, nil
}

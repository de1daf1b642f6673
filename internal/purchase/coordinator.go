package purchase

import (
	"context"
	"fmt"

	"pix-case-ledger-go/internal/draw"
	"pix-case-ledger-go/internal/models"
	"pix-case-ledger-go/internal/store"

	"go.uber.org/zap"
)

// Coordinator ties case openings together: it loads the case and its prize
// table, selects the balance to stake from, and runs the draw inside the
// store's purchase transaction so the stake, the selection and the payout
// land or fail as one unit.
type Coordinator struct {
	store  store.Store
	engine *draw.Engine
}

func NewCoordinator(st store.Store, engine *draw.Engine) *Coordinator {
	if engine == nil {
		engine = draw.NewEngine(nil)
	}
	return &Coordinator{store: st, engine: engine}
}

// Buy opens one case for the account. The stake comes from the account's
// spendable balance, bonus-segment accounts draw against the bonus weight
// table, and the awarded prize value is credited to the same balance kind.
func (c *Coordinator) Buy(ctx context.Context, accountId, caseId string) (*models.PurchaseResult, error) {
	account, err := c.store.GetAccountById(ctx, accountId)
	if err != nil {
		return nil, err
	}

	caseRow, err := c.store.GetCase(ctx, caseId)
	if err != nil {
		return nil, err
	}
	if !caseRow.Active {
		return nil, fmt.Errorf("%w: case %s is not active", store.ErrCaseNotFound, caseId)
	}

	prizes, err := c.store.GetCasePrizes(ctx, caseId)
	if err != nil {
		return nil, err
	}
	if account.Segment == models.SegmentBonus {
		prizes = bonusPrizeTable(prizes)
	}

	var awarded *models.Prize
	purchaseRow, newBalance, err := c.store.ExecutePurchase(ctx, store.ExecutePurchaseParams{
		AccountId:   accountId,
		CaseId:      caseId,
		Price:       caseRow.Price,
		BalanceKind: account.SpendableBalance(),
		Draw: func() (*models.Prize, error) {
			prize, err := c.engine.Draw(prizes)
			if err != nil {
				return nil, err
			}
			awarded = prize
			return prize, nil
		},
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Case opened",
		zap.String("account_id", accountId),
		zap.String("case_id", caseId),
		zap.String("prize_id", awarded.Id),
		zap.String("prize_value", awarded.Value.String()),
		zap.String("new_balance", newBalance.String()))

	return &models.PurchaseResult{
		Purchase:   purchaseRow,
		Prize:      awarded,
		NewBalance: newBalance,
	}, nil
}

// History returns the account's most recent case openings.
func (c *Coordinator) History(ctx context.Context, accountId string, limit, offset int) ([]models.Purchase, error) {
	return c.store.GetPurchases(ctx, accountId, limit, offset)
}

// bonusPrizeTable substitutes each prize's bonus weight where one is set.
// Prizes without a bonus weight keep their standard one.
func bonusPrizeTable(prizes []models.Prize) []models.Prize {
	out := make([]models.Prize, len(prizes))
	copy(out, prizes)
	for i := range out {
		if out[i].BonusProbability != nil {
			out[i].Probability = *out[i].BonusProbability
		}
	}
	return out
}

package database

import (
	"context"
	"errors"
	"testing"

	"pix-case-ledger-go/internal/models"
	"pix-case-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func testPrize(value decimal.Decimal) *models.Prize {
	return &models.Prize{
		Id:          "pz-1",
		CaseId:      "case-1",
		Name:        "Test Prize",
		Value:       value,
		Probability: 1.0,
		Drawable:    true,
		Active:      true,
	}
}

func TestExecutePurchaseWritesPairedEntries(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()
	account := createAccount(t, service, "acc-pair")
	credit(t, service, account.Id, decimal.NewFromInt(100), "dep-1")

	purchase, newBalance, err := service.ExecutePurchase(ctx, store.ExecutePurchaseParams{
		AccountId:   account.Id,
		CaseId:      "case-1",
		Price:       decimal.NewFromInt(10),
		BalanceKind: models.BalanceReal,
		Draw: func() (*models.Prize, error) {
			return testPrize(decimal.NewFromInt(4)), nil
		},
	})
	if err != nil {
		t.Fatalf("ExecutePurchase failed: %v", err)
	}

	if !newBalance.Equal(decimal.NewFromInt(94)) {
		t.Errorf("New balance %s, want 94", newBalance)
	}
	if !purchase.StakeAmount.Equal(decimal.NewFromInt(10)) || !purchase.PayoutAmount.Equal(decimal.NewFromInt(4)) {
		t.Errorf("Purchase stake=%s payout=%s, want 10/4", purchase.StakeAmount, purchase.PayoutAmount)
	}

	entries, err := service.GetLedgerHistory(ctx, account.Id, 10, 0)
	if err != nil {
		t.Fatalf("GetLedgerHistory failed: %v", err)
	}
	var stake, payout *models.LedgerEntry
	for i := range entries {
		if entries[i].ReferenceId != purchase.Id {
			continue
		}
		switch entries[i].Kind {
		case models.EntryStake:
			stake = &entries[i]
		case models.EntryPayout:
			payout = &entries[i]
		}
	}
	if stake == nil || payout == nil {
		t.Fatal("Stake and payout entries not both present")
	}
	if !stake.Amount.Equal(decimal.NewFromInt(-10)) {
		t.Errorf("Stake amount %s, want -10", stake.Amount)
	}
	if !payout.Amount.Equal(decimal.NewFromInt(4)) {
		t.Errorf("Payout amount %s, want 4", payout.Amount)
	}
	// The payout entry continues exactly where the stake left off.
	if !payout.BalanceBefore.Equal(stake.BalanceAfter) {
		t.Errorf("Payout starts at %s, stake ended at %s", payout.BalanceBefore, stake.BalanceAfter)
	}
}

func TestExecutePurchaseZeroValuePrizeRecordsPayout(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()
	account := createAccount(t, service, "acc-zero")
	credit(t, service, account.Id, decimal.NewFromInt(20), "dep-1")

	purchase, newBalance, err := service.ExecutePurchase(ctx, store.ExecutePurchaseParams{
		AccountId:   account.Id,
		CaseId:      "case-1",
		Price:       decimal.NewFromInt(10),
		BalanceKind: models.BalanceReal,
		Draw: func() (*models.Prize, error) {
			return testPrize(decimal.Zero), nil
		},
	})
	if err != nil {
		t.Fatalf("ExecutePurchase failed: %v", err)
	}
	if !newBalance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("New balance %s, want 10", newBalance)
	}

	entries, err := service.GetLedgerHistory(ctx, account.Id, 10, 0)
	if err != nil {
		t.Fatalf("GetLedgerHistory failed: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.ReferenceId == purchase.Id && e.Kind == models.EntryPayout && e.Amount.IsZero() {
			found = true
		}
	}
	if !found {
		t.Error("Zero-value payout entry missing; every opening must record its outcome")
	}
}

func TestExecutePurchaseDrawErrorRollsBack(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()
	account := createAccount(t, service, "acc-drawfail")
	credit(t, service, account.Id, decimal.NewFromInt(50), "dep-1")

	drawErr := errors.New("weight table corrupt")
	_, _, err := service.ExecutePurchase(ctx, store.ExecutePurchaseParams{
		AccountId:   account.Id,
		CaseId:      "case-1",
		Price:       decimal.NewFromInt(10),
		BalanceKind: models.BalanceReal,
		Draw: func() (*models.Prize, error) {
			return nil, drawErr
		},
	})
	if !errors.Is(err, drawErr) {
		t.Fatalf("Expected draw error, got %v", err)
	}

	balance, err := service.GetBalance(ctx, account.Id, models.BalanceReal)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Balance %s after failed draw, want 50", balance)
	}

	purchases, err := service.GetPurchases(ctx, account.Id, 10, 0)
	if err != nil {
		t.Fatalf("GetPurchases failed: %v", err)
	}
	if len(purchases) != 0 {
		t.Errorf("Expected no purchase rows, got %d", len(purchases))
	}
}

func TestUpsertCaseReplacesPrizeSet(t *testing.T) {
	service := setupTestDB(t)
	ctx := context.Background()

	c := models.Case{Id: "case-swap", Name: "Swap Case", Price: decimal.NewFromInt(5), Active: true}
	first := []models.Prize{
		{Id: "pz-a", CaseId: c.Id, Name: "A", Value: decimal.NewFromInt(1), Probability: 0.5, Drawable: true, Active: true},
		{Id: "pz-b", CaseId: c.Id, Name: "B", Value: decimal.NewFromInt(2), Probability: 0.5, Drawable: true, Active: true},
	}
	if err := service.UpsertCase(ctx, c, first); err != nil {
		t.Fatalf("UpsertCase failed: %v", err)
	}

	// Re-sync without pz-b: it must drop out of the active set.
	second := []models.Prize{
		{Id: "pz-a", CaseId: c.Id, Name: "A", Value: decimal.NewFromInt(1), Probability: 1.0, Drawable: true, Active: true},
	}
	if err := service.UpsertCase(ctx, c, second); err != nil {
		t.Fatalf("UpsertCase re-sync failed: %v", err)
	}

	prizes, err := service.GetCasePrizes(ctx, c.Id)
	if err != nil {
		t.Fatalf("GetCasePrizes failed: %v", err)
	}
	if len(prizes) != 1 || prizes[0].Id != "pz-a" {
		t.Fatalf("Expected only pz-a active, got %d prizes", len(prizes))
	}
	if prizes[0].Probability != 1.0 {
		t.Errorf("Prize probability %f after re-sync, want 1.0", prizes[0].Probability)
	}
}

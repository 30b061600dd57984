package service

import (
	"context"
	"testing"

	"agrimarket/internal/model"
	"agrimarket/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTransaction(t *testing.T) {
	tests := []struct {
		transType  string
		amount     string
		wallet     string
		escrow     string
		kind       Kind
		wantWallet string
		wantEscrow string
	}{
		{model.TransactionTypeDeposit, "50.00", "100.00", "0", "", "150.00", "0.00"},
		{model.TransactionTypeRefund, "50.00", "100.00", "0", "", "150.00", "0.00"},
		{model.TransactionTypeBonus, "0.01", "0", "0", "", "0.01", "0.00"},
		{model.TransactionTypeWithdrawal, "100.00", "100.00", "0", "", "0.00", "0.00"},
		{model.TransactionTypeWithdrawal, "100.01", "100.00", "0", KindInsufficientBalance, "100.00", "0.00"},
		{model.TransactionTypePurchase, "30.00", "100.00", "0", "", "70.00", "0.00"},
		{model.TransactionTypePayout, "30.00", "10.00", "0", KindInsufficientBalance, "10.00", "0.00"},
		{model.TransactionTypeEscrowHold, "40.00", "100.00", "5.00", "", "60.00", "45.00"},
		{model.TransactionTypeEscrowHold, "140.00", "100.00", "5.00", KindInsufficientBalance, "100.00", "5.00"},
		{model.TransactionTypeEscrowRelease, "5.00", "100.00", "5.00", "", "105.00", "0.00"},
		{model.TransactionTypeEscrowRelease, "5.01", "100.00", "5.00", KindInsufficientEscrow, "100.00", "5.00"},
		{model.TransactionTypeEscrowRefund, "2.50", "0", "5.00", "", "2.50", "2.50"},
		{model.TransactionTypeFee, "9.99", "1.00", "1.00", "", "1.00", "1.00"},
		{model.TransactionTypeOther, "9.99", "1.00", "1.00", "", "1.00", "1.00"},
		{model.TransactionTypeDeposit, "0", "1.00", "0", KindValidation, "1.00", "0.00"},
		{"lottery", "1.00", "1.00", "0", KindValidation, "1.00", "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.transType+"/"+tt.amount, func(t *testing.T) {
			user := &model.User{ID: 1, WalletBalance: dec(tt.wallet), EscrowBalance: dec(tt.escrow)}
			err := applyTransaction(user, tt.transType, dec(tt.amount))
			if tt.kind != "" {
				assertKind(t, err, tt.kind)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantWallet, user.WalletBalance.StringFixed(2))
			assert.Equal(t, tt.wantEscrow, user.EscrowBalance.StringFixed(2))
		})
	}
}

func TestAccountService_Apply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	trans, err := f.account.Apply(ctx, actorOf(f.seller), validation.LedgerCommand{
		UserID:           f.seller.ID,
		Type:             model.TransactionTypeDeposit,
		Amount:           dec("1500.50"),
		PaymentReference: "BANK-001",
		Description:      "top up",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusCompleted, trans.Status)
	assert.Equal(t, "NGN", trans.Currency)
	assert.NotNil(t, trans.ProcessedAt)
	assert.Nil(t, trans.OrderID)
	require.NotNil(t, trans.PaymentReference)
	assert.Equal(t, "BANK-001", *trans.PaymentReference)

	seller, err := f.account.GetAccount(ctx, actorOf(f.seller), f.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, "1500.50", seller.WalletBalance.StringFixed(2))

	_, err = f.account.Apply(ctx, actorOf(f.seller), validation.LedgerCommand{
		UserID:           f.seller.ID,
		Type:             model.TransactionTypeDeposit,
		Amount:           dec("1.00"),
		PaymentReference: "BANK-001",
	})
	assertKind(t, err, KindValidation)

	_, err = f.account.Apply(ctx, actorOf(f.seller), validation.LedgerCommand{
		UserID: f.seller.ID,
		Type:   model.TransactionTypeWithdrawal,
		Amount: dec("2000.00"),
	})
	assertKind(t, err, KindInsufficientBalance)

	page, err := f.account.ListTransactions(ctx, actorOf(f.seller), f.seller.ID, validation.Page{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "1500.50", f.user(t, f.seller.ID).WalletBalance.StringFixed(2))
}

func TestAccountService_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.account.Apply(ctx, actorOf(f.buyer), validation.LedgerCommand{
		UserID: f.seller.ID, Type: model.TransactionTypeDeposit, Amount: dec("1.00"),
	})
	assertKind(t, err, KindForbidden)

	_, err = f.account.Apply(ctx, actorOf(f.buyer), validation.LedgerCommand{
		UserID: f.buyer.ID, Type: model.TransactionTypeBonus, Amount: dec("1.00"),
	})
	assertKind(t, err, KindForbidden)

	_, err = f.account.Apply(ctx, actorOf(f.admin), validation.LedgerCommand{
		UserID: f.buyer.ID, Type: model.TransactionTypeBonus, Amount: dec("1.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "20001.00", f.user(t, f.buyer.ID).WalletBalance.StringFixed(2))

	_, err = f.account.GetAccount(ctx, actorOf(f.seller), f.buyer.ID)
	assertKind(t, err, KindForbidden)
	_, err = f.account.ListTransactions(ctx, actorOf(f.seller), f.buyer.ID, validation.Page{Page: 1, PageSize: 10})
	assertKind(t, err, KindForbidden)

	_, err = f.account.GetAccount(ctx, actorOf(f.admin), 999)
	assertKind(t, err, KindNotFound)
	_, err = f.account.Apply(ctx, actorOf(f.admin), validation.LedgerCommand{
		UserID: 999, Type: model.TransactionTypeDeposit, Amount: dec("1.00"),
	})
	assertKind(t, err, KindNotFound)
}

func TestDefaultAuthorizer(t *testing.T) {
	buyer := Actor{ID: 1, Role: model.RoleBuyer}
	seller := Actor{ID: 2, Role: model.RoleFarmer}
	order := Resource{BuyerID: 1, SellerID: 2}

	assert.True(t, DefaultAuthorizer(buyer, ActionPlaceOrder, order))
	assert.False(t, DefaultAuthorizer(seller, ActionPlaceOrder, order))
	assert.True(t, DefaultAuthorizer(seller, ActionTransitionOrder, order))
	assert.False(t, DefaultAuthorizer(buyer, ActionTransitionOrder, order))
	assert.True(t, DefaultAuthorizer(buyer, ActionViewOrder, order))
	assert.True(t, DefaultAuthorizer(seller, ActionViewOrder, order))
	assert.False(t, DefaultAuthorizer(Actor{ID: 3}, ActionViewOrder, order))
	assert.False(t, DefaultAuthorizer(buyer, ActionLedgerAdjust, Resource{UserID: 1}))
	assert.True(t, DefaultAuthorizer(SystemActor, ActionTransitionOrder, order))
	assert.False(t, DefaultAuthorizer(buyer, Action("unknown"), order))
}

package validation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPlaceOrder() PlaceOrderRequest {
	return PlaceOrderRequest{
		ProductID:       3,
		Quantity:        decimal.NewFromInt(50),
		BuyerID:         7,
		DeliveryAddress: "  12 Market Road, Kano ",
		PaymentMethod:   "wallet",
	}
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var verr *Error
	require.True(t, errors.As(err, &verr), "expected *validation.Error, got %v", err)
	return verr.Field
}

func TestPlaceOrder_Valid(t *testing.T) {
	cmd, err := PlaceOrder(validPlaceOrder(), " key-1 ")
	require.NoError(t, err)

	assert.Equal(t, int64(3), cmd.ProductID)
	assert.Equal(t, int64(7), cmd.BuyerID)
	assert.Equal(t, "12 Market Road, Kano", cmd.DeliveryAddress)
	assert.Equal(t, "key-1", cmd.RequestID)
	assert.True(t, cmd.Quantity.Equal(decimal.NewFromInt(50)))
}

func TestPlaceOrder_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(r *PlaceOrderRequest)
		field string
	}{
		{"missing product", func(r *PlaceOrderRequest) { r.ProductID = 0 }, "productId"},
		{"missing buyer", func(r *PlaceOrderRequest) { r.BuyerID = 0 }, "buyerId"},
		{"zero quantity", func(r *PlaceOrderRequest) { r.Quantity = decimal.Zero }, "quantity"},
		{"negative quantity", func(r *PlaceOrderRequest) { r.Quantity = decimal.NewFromInt(-1) }, "quantity"},
		{"too precise quantity", func(r *PlaceOrderRequest) { r.Quantity = decimal.RequireFromString("1.0001") }, "quantity"},
		{"unknown payment method", func(r *PlaceOrderRequest) { r.PaymentMethod = "barter" }, "paymentMethod"},
		{"empty address", func(r *PlaceOrderRequest) { r.DeliveryAddress = "" }, "deliveryAddress"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validPlaceOrder()
			tc.edit(&req)
			_, err := PlaceOrder(req, "")
			require.Error(t, err)
			assert.Equal(t, tc.field, fieldOf(t, err))
		})
	}
}

func TestTransition(t *testing.T) {
	cmd, err := Transition(9, TransitionRequest{Status: "cancelled", CancellationReason: " buyer changed mind "})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cmd.Target)
	assert.Equal(t, "buyer changed mind", cmd.CancellationReason)

	_, err = Transition(9, TransitionRequest{Status: "teleported"})
	assert.Equal(t, "status", fieldOf(t, err))

	_, err = Transition(9, TransitionRequest{})
	assert.Equal(t, "status", fieldOf(t, err))

	_, err = Transition(0, TransitionRequest{Status: "paid"})
	assert.Equal(t, "id", fieldOf(t, err))
}

func TestLedger(t *testing.T) {
	cmd, err := Ledger(LedgerRequest{UserID: 1, Type: "deposit", Amount: decimal.RequireFromString("100.50"), Currency: "ngn"})
	require.NoError(t, err)
	assert.Equal(t, "NGN", cmd.Currency)

	_, err = Ledger(LedgerRequest{UserID: 1, Type: "deposit", Amount: decimal.RequireFromString("1.001")})
	assert.Equal(t, "amount", fieldOf(t, err))

	_, err = Ledger(LedgerRequest{UserID: 1, Type: "gift", Amount: decimal.NewFromInt(1)})
	assert.Equal(t, "type", fieldOf(t, err))

	_, err = Ledger(LedgerRequest{UserID: 1, Type: "deposit", Amount: decimal.Zero})
	assert.Equal(t, "amount", fieldOf(t, err))
}

func TestPagination(t *testing.T) {
	p, err := Pagination("", "", 20, 100)
	require.NoError(t, err)
	assert.Equal(t, Page{Page: 1, PageSize: 20}, p)

	p, err = Pagination("3", "500", 20, 100)
	require.NoError(t, err)
	assert.Equal(t, Page{Page: 3, PageSize: 100}, p)

	_, err = Pagination("0", "", 20, 100)
	assert.Equal(t, "page", fieldOf(t, err))

	_, err = Pagination("1", "x", 20, 100)
	assert.Equal(t, "page_size", fieldOf(t, err))
}

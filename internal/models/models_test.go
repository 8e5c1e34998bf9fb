package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableActions(t *testing.T) {
	tests := []struct {
		status   OrderStatus
		expected []OrderAction
	}{
		{StatusPendingPayment, []OrderAction{ActionVerifyPayment, ActionReject}},
		{StatusPaymentVerified, []OrderAction{ActionRequestPassport}},
		{StatusPassportRequested, []OrderAction{ActionAttachPassport}},
		{StatusPassportVerified, []OrderAction{ActionConfirm}},
		{StatusConfirmed, nil},
		{StatusRejected, nil},
		{OrderStatus("shipped"), nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expected, AvailableActions(tt.status))
		})
	}
}

func TestPendingPaymentNeverOffersConfirm(t *testing.T) {
	assert.False(t, StatusPendingPayment.Allows(ActionConfirm))
	assert.True(t, StatusPendingPayment.Allows(ActionReject))
}

func TestTransitionsFormAChain(t *testing.T) {
	// every non-terminal status is reachable from pending_payment and has an exit
	reached := map[OrderStatus]bool{StatusPendingPayment: true}
	for _, tr := range Transitions() {
		require.True(t, reached[tr.From], "edge %s starts from unreached %s", tr.Action, tr.From)
		reached[tr.To] = true
	}
	for s := range statusLabels {
		assert.True(t, reached[s], "status %s unreachable", s)
		if !s.IsTerminal() {
			assert.NotEmpty(t, AvailableActions(s), "non-terminal %s has no actions", s)
		}
	}
}

func TestActionTransition(t *testing.T) {
	tr, ok := ActionAttachPassport.Transition()
	require.True(t, ok)
	assert.Equal(t, StatusPassportRequested, tr.From)
	assert.Equal(t, StatusPassportVerified, tr.To)

	assert.False(t, OrderAction("ship").Valid())
	assert.Equal(t, StatusConfirmed, ActionConfirm.Target())
	assert.Empty(t, OrderAction("ship").Target())
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Отклонён", StatusRejected.Label())
	assert.Equal(t, "mystery", OrderStatus("mystery").Label())
}

func TestOrderDecodesPopulatedAndBareRefs(t *testing.T) {
	raw := `{
		"_id": "o1",
		"user": {"_id": "u1", "phone": "+998901234567"},
		"products": [
			{"product": {"_id": "p1", "name": "Lamp", "price": 100}, "quantity": 2, "price": 90},
			{"product": "p2", "quantity": 1, "price": 30},
			{"product": null, "quantity": 1, "price": 10}
		],
		"status": "pending_payment",
		"prepaymentPercentage": 50,
		"prepaymentAmount": 105
	}`

	var o Order
	require.NoError(t, json.Unmarshal([]byte(raw), &o))
	require.NoError(t, o.Validate())

	assert.Equal(t, "u1", o.User.ID)
	assert.Equal(t, "+998901234567", o.User.Phone)
	require.Len(t, o.Products, 3)
	assert.Equal(t, "p1", o.Products[0].Product.ID)
	assert.Equal(t, "Lamp", o.Products[0].Product.Name())
	assert.Equal(t, "p2", o.Products[1].Product.ID)
	assert.Nil(t, o.Products[1].Product.Product)
	assert.Equal(t, "Товар удалён", o.Products[2].Product.Name())
}

func TestOrderUserAsBareID(t *testing.T) {
	var o Order
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"o1","user":"u9","status":"confirmed"}`), &o))
	assert.Equal(t, "u9", o.User.ID)
}

func TestValidate(t *testing.T) {
	assert.Error(t, Product{Name: "x"}.Validate())
	assert.Error(t, Product{ID: "p", Name: "x", Price: -1}.Validate())
	assert.NoError(t, Product{ID: "p", Name: "x"}.Validate())

	assert.Error(t, Order{ID: "o", Status: "shipped"}.Validate())
	assert.Error(t, User{}.Validate())
	assert.Error(t, NewsItem{ID: "n"}.Validate())
	assert.Error(t, AuthResponse{}.Validate())
	assert.Error(t, UploadResponse{}.Validate())

	assert.Error(t, ProductInput{Name: " "}.Validate())
	assert.Error(t, NewsInput{Title: "t"}.Validate())
}

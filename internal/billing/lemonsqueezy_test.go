package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLemonSqueezyAdapterPaidOrder(t *testing.T) {
	adapter := NewLemonSqueezyAdapter("ls_secret")
	body := []byte(`{
		"meta": {"event_name": "order_created", "webhook_id": "wh_1", "custom_data": {"team_id": "team-9"}},
		"data": {"id": "order-1", "attributes": {
			"status": "paid",
			"user_email": "buyer@example.com",
			"customer_id": 42,
			"first_order_item": {"product_id": 101}
		}}
	}`)

	event, err := adapter.Parse(body, signHex([]byte("ls_secret"), body))
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, KindCheckoutCompleted, event.Kind)
	assert.Equal(t, "wh_1", event.ID)
	assert.Equal(t, "team-9", event.TeamRef)
	assert.Equal(t, "42", event.CustomerID)
	assert.Equal(t, "101", event.ProductID)
}

func TestLemonSqueezyAdapterUnpaidOrderIgnored(t *testing.T) {
	adapter := NewLemonSqueezyAdapter("ls_secret")
	body := []byte(`{
		"meta": {"event_name": "order_created", "webhook_id": "wh_2"},
		"data": {"id": "order-2", "attributes": {"status": "pending", "user_email": "a@b.c", "customer_id": 1, "first_order_item": {"product_id": 5}}}
	}`)

	event, err := adapter.Parse(body, signHex([]byte("ls_secret"), body))
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestLemonSqueezyAdapterPlanChanged(t *testing.T) {
	adapter := NewLemonSqueezyAdapter("ls_secret")
	body := []byte(`{
		"meta": {"event_name": "subscription_plan_changed", "webhook_id": "wh_3"},
		"data": {"id": "sub-1", "attributes": {"status": "active", "user_email": "a@b.c", "customer_id": 7, "product_id": 202}}
	}`)

	event, err := adapter.Parse(body, signHex([]byte("ls_secret"), body))
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, KindSubscriptionUpdated, event.Kind)
	assert.Equal(t, "202", event.ProductID)
}

func TestLemonSqueezyAdapterExpired(t *testing.T) {
	adapter := NewLemonSqueezyAdapter("ls_secret")
	body := []byte(`{
		"meta": {"event_name": "subscription_expired"},
		"data": {"id": "sub-2", "attributes": {"status": "expired", "user_email": "a@b.c", "customer_id": 7, "product_id": 202}}
	}`)

	event, err := adapter.Parse(body, signHex([]byte("ls_secret"), body))
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, KindSubscriptionDeleted, event.Kind)
	assert.Equal(t, "subscription_expired:sub-2", event.ID)
	assert.Equal(t, "expired", event.CancelReason)
}

func TestLemonSqueezyAdapterBadSignature(t *testing.T) {
	adapter := NewLemonSqueezyAdapter("ls_secret")
	body := []byte(`{"meta": {"event_name": "order_created"}, "data": {"id": "x", "attributes": {}}}`)

	event, err := adapter.Parse(body, signHex([]byte("wrong_secret"), body))
	require.Error(t, err)
	assert.Nil(t, event)
}

func TestLemonSqueezyAdapterMissingSignature(t *testing.T) {
	adapter := NewLemonSqueezyAdapter("ls_secret")

	event, err := adapter.Parse([]byte(`{}`), "")
	require.Error(t, err)
	assert.Nil(t, event)
}

package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signStripe(secret string, body []byte, at time.Time) string {
	payload := fmt.Sprintf("%d.%s", at.Unix(), body)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), signHex([]byte(secret), []byte(payload)))
}

type resolverStub struct {
	productID string
	err       error
	calls     int
}

func (r *resolverStub) CheckoutProductID(ctx context.Context, sessionID string) (string, error) {
	r.calls++
	return r.productID, r.err
}

func TestStripeAdapterCheckoutCompleted(t *testing.T) {
	adapter := NewStripeAdapter("whsec_test", time.Minute, nil, 0)
	body := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": 1700000000,
		"data": {"object": {
			"id": "cs_1",
			"client_reference_id": "team-1",
			"customer": "cus_1",
			"customer_details": {"email": "buyer@example.com"},
			"metadata": {"product_id": "prod_basic"}
		}}
	}`)

	event, err := adapter.Parse(body, signStripe("whsec_test", body, time.Now()))
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, KindCheckoutCompleted, event.Kind)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "team-1", event.TeamRef)
	assert.Equal(t, "cus_1", event.CustomerID)
	assert.Equal(t, "buyer@example.com", event.Email)
	assert.Equal(t, "prod_basic", event.ProductID)
}

func TestStripeAdapterCheckoutResolvesProduct(t *testing.T) {
	resolver := &resolverStub{productID: "prod_pro"}
	adapter := NewStripeAdapter("whsec_test", time.Minute, resolver, time.Second)
	body := []byte(`{
		"id": "evt_2",
		"type": "checkout.session.completed",
		"created": 1700000000,
		"data": {"object": {"id": "cs_2", "customer": "cus_2", "customer_details": {"email": "x@example.com"}}}
	}`)

	event, err := adapter.Parse(body, signStripe("whsec_test", body, time.Now()))
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "prod_pro", event.ProductID)
	assert.Equal(t, 1, resolver.calls)
}

func TestStripeAdapterSubscriptionUpdated(t *testing.T) {
	adapter := NewStripeAdapter("whsec_test", time.Minute, nil, 0)
	body := []byte(`{
		"id": "evt_3",
		"type": "customer.subscription.updated",
		"created": 1700000000,
		"data": {"object": {
			"id": "sub_1",
			"customer": "cus_3",
			"cancel_at": 1800000000,
			"cancellation_details": {"reason": "cancellation_requested"},
			"items": {"data": [{"price": {"product": "prod_basic"}}]}
		}}
	}`)

	event, err := adapter.Parse(body, signStripe("whsec_test", body, time.Now()))
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, KindSubscriptionUpdated, event.Kind)
	assert.Equal(t, "prod_basic", event.ProductID)
	require.NotNil(t, event.CancelAt)
	assert.Equal(t, time.Unix(1800000000, 0).UTC(), *event.CancelAt)
	assert.Equal(t, "cancellation_requested", event.CancelReason)
}

func TestStripeAdapterTamperedBody(t *testing.T) {
	adapter := NewStripeAdapter("whsec_test", time.Minute, nil, 0)
	body := []byte(`{"id": "evt_4", "type": "customer.subscription.deleted", "created": 1700000000, "data": {"object": {"customer": "cus_4"}}}`)
	header := signStripe("whsec_test", body, time.Now())

	tampered := append([]byte{}, body...)
	tampered[len(tampered)-2] = 'X'

	event, err := adapter.Parse(tampered, header)
	require.Error(t, err)
	assert.Nil(t, event)
}

func TestStripeAdapterWrongSecret(t *testing.T) {
	adapter := NewStripeAdapter("whsec_test", time.Minute, nil, 0)
	body := []byte(`{"id": "evt_5", "type": "checkout.session.completed", "created": 1700000000, "data": {"object": {}}}`)

	event, err := adapter.Parse(body, signStripe("whsec_other", body, time.Now()))
	require.Error(t, err)
	assert.Nil(t, event)
}

func TestStripeAdapterStaleTimestamp(t *testing.T) {
	adapter := NewStripeAdapter("whsec_test", time.Minute, nil, 0)
	body := []byte(`{"id": "evt_6", "type": "checkout.session.completed", "created": 1700000000, "data": {"object": {}}}`)

	event, err := adapter.Parse(body, signStripe("whsec_test", body, time.Now().Add(-time.Hour)))
	require.Error(t, err)
	assert.Nil(t, event)
}

func TestStripeAdapterIgnoresUnhandledType(t *testing.T) {
	adapter := NewStripeAdapter("whsec_test", time.Minute, nil, 0)
	body := []byte(`{"id": "evt_7", "type": "invoice.paid", "created": 1700000000, "data": {"object": {}}}`)

	event, err := adapter.Parse(body, signStripe("whsec_test", body, time.Now()))
	require.NoError(t, err)
	assert.Nil(t, event)
}

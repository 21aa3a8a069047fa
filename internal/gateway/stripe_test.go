package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testGateway(server *httptest.Server) *stripeGateway {
	return &stripeGateway{
		secretKey: "sk_test_123",
		baseURL:   server.URL,
		client:    &http.Client{Timeout: time.Second},
	}
}

func TestChargeSendsAmountInCents(t *testing.T) {
	var form map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		require.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id":"ch_123"}`))
	}))
	defer server.Close()

	buyerID := uuid.New()
	id, err := testGateway(server).Charge(context.Background(), ChargeRequest{
		Amount:   12.5,
		BuyerID:  buyerID,
		Metadata: map[string]string{"item_type": "Order"},
	})
	require.NoError(t, err)
	require.Equal(t, "ch_123", id)
	require.Equal(t, []string{"1250"}, form["amount"])
	require.Equal(t, []string{"true"}, form["capture"])
	require.Equal(t, []string{buyerID.String()}, form["customer"])
	require.Equal(t, []string{"Order"}, form["metadata[item_type]"])
}

func TestAuthorizeDoesNotCapture(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "false", r.PostForm.Get("capture"))
		w.Write([]byte(`{"id":"ch_auth"}`))
	}))
	defer server.Close()

	id, err := testGateway(server).Authorize(context.Background(), ChargeRequest{Amount: 5, BuyerID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, "ch_auth", id)
}

func TestCardErrorBecomesDecline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds."}}`))
	}))
	defer server.Close()

	_, err := testGateway(server).Charge(context.Background(), ChargeRequest{Amount: 5, BuyerID: uuid.New()})
	require.Error(t, err)
	require.True(t, IsDecline(err))

	var decline *DeclineError
	require.ErrorAs(t, err, &decline)
	require.Equal(t, "insufficient_funds", decline.Code)
}

func TestNonCardErrorIsNotDecline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Invalid API Key"}}`))
	}))
	defer server.Close()

	_, err := testGateway(server).Charge(context.Background(), ChargeRequest{Amount: 5, BuyerID: uuid.New()})
	require.Error(t, err)
	require.False(t, IsDecline(err))
}

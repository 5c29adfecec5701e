package gateway_test

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/satgate/satgate-core/pkg/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePaymentRequest(t *testing.T) {
	hash := []byte("12345678901234567890123456789012")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/invoices", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("X-Request-Id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"r_hash":"` + base64.StdEncoding.EncodeToString(hash) + `","payment_request":"lnsat1demo"}`))
	}))
	defer srv.Close()

	client := gateway.NewClient(srv.URL, "test-key")
	pr, err := client.CreatePaymentRequest(context.Background(), 10, "satgate premium", 3600)
	require.NoError(t, err)
	assert.Equal(t, hash, pr.CommitmentHash)
	assert.Equal(t, "lnsat1demo", pr.Request)
}

func TestSettle(t *testing.T) {
	secret := []byte("payment-preimage-32-bytes-long!!")

	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/channels/transactions", r.URL.Path)
			_, _ = w.Write([]byte(`{"payment_error":"","payment_preimage":"` +
				base64.StdEncoding.EncodeToString(secret) + `","payment_route":{"total_fees":"2"}}`))
		}))
		defer srv.Close()

		client := gateway.NewClient(srv.URL, "")
		st, err := client.Settle(context.Background(), "lnsat1demo")
		require.NoError(t, err)
		assert.Equal(t, secret, st.Secret)
		assert.Equal(t, int64(2), st.Fee)
	})

	t.Run("payment failure is not unavailability", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"payment_error":"no route to destination"}`))
		}))
		defer srv.Close()

		client := gateway.NewClient(srv.URL, "")
		_, err := client.Settle(context.Background(), "lnsat1demo")
		require.ErrorIs(t, err, gateway.ErrPaymentFailed)
		assert.NotErrorIs(t, err, gateway.ErrUnavailable)
		assert.Contains(t, err.Error(), "no route")
	})
}

func TestDecode(t *testing.T) {
	hash := []byte("12345678901234567890123456789012")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payreq/lnsat1demo", r.URL.Path)
		_, _ = w.Write([]byte(`{"destination":"03abcdef","payment_hash":"` + hex.EncodeToString(hash) +
			`","num_satoshis":"10","description":"satgate premium","expiry":"3600"}`))
	}))
	defer srv.Close()

	client := gateway.NewClient(srv.URL, "")
	dec, err := client.Decode(context.Background(), "lnsat1demo")
	require.NoError(t, err)
	assert.Equal(t, int64(10), dec.Amount)
	assert.Equal(t, "satgate premium", dec.Memo)
	assert.Equal(t, "03abcdef", dec.Destination)
	assert.Equal(t, hash, dec.CommitmentHash)
	assert.Equal(t, int64(3600), dec.ExpirySeconds)
}

func TestCheckSettlement(t *testing.T) {
	hash := []byte("12345678901234567890123456789012")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/invoice/"+hex.EncodeToString(hash), r.URL.Path)
		_, _ = w.Write([]byte(`{"settled":true,"amt_paid_sat":"10"}`))
	}))
	defer srv.Close()

	client := gateway.NewClient(srv.URL, "")
	status, err := client.CheckSettlement(context.Background(), hash)
	require.NoError(t, err)
	assert.True(t, status.Settled)
	assert.Equal(t, int64(10), status.AmountReceived)
}

func TestChannelBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/balance/channels", r.URL.Path)
		_, _ = w.Write([]byte(`{"balance":"50000","remote_balance":"20000","pending_open_balance":"0"}`))
	}))
	defer srv.Close()

	client := gateway.NewClient(srv.URL, "")
	bal, err := client.ChannelBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(50000), bal.Local)
	assert.Equal(t, int64(20000), bal.Remote)
	assert.Equal(t, int64(0), bal.PendingOpen)
}

func TestErrorMapping(t *testing.T) {
	t.Run("non-2xx is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := gateway.NewClient(srv.URL, "")
		_, err := client.ChannelBalance(context.Background())
		require.ErrorIs(t, err, gateway.ErrUnavailable)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("connection refused is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close() // immediately, so the port refuses connections

		client := gateway.NewClient(srv.URL, "")
		_, err := client.ChannelBalance(context.Background())
		require.ErrorIs(t, err, gateway.ErrUnavailable)
	})

	t.Run("timeout is unavailable", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			<-release
		}))
		defer func() {
			close(release)
			srv.Close()
		}()

		client := gateway.NewClient(srv.URL, "")
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := client.ChannelBalance(ctx)
		require.ErrorIs(t, err, gateway.ErrUnavailable)
	})
}

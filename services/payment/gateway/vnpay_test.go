package gateway

import (
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"skybook/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testVNPay() *VNPay {
	return &VNPay{
		BaseURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		TmnCode:    "SKYBOOK1",
		HashSecret: "vnpay-test-secret",
		ReturnURL:  "https://example.test/api/payments/vnpay/return",
		Logger:     zap.NewNop(),
	}
}

func testPayment() (*models.Payment, *models.Booking) {
	p := &models.Payment{
		ID:        "pay-1",
		Reference: "PXK2M1",
		BookingID: "bk-1",
		Amount: models.AmountBreakdown{
			Total: 1_200_000, Base: 1_100_000, Taxes: 100_000, Currency: "VND",
		},
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}
	b := &models.Booking{ID: "bk-1", Reference: "AB12CD", UserID: "user-1"}
	return p, b
}

// signedVNPayCallback builds a correctly signed callback parameter map.
func signedVNPayCallback(g *VNPay, overrides map[string]string) map[string]string {
	params := map[string]string{
		"vnp_TmnCode":       g.TmnCode,
		"vnp_Amount":        "120000000",
		"vnp_TxnRef":        "PXK2M1",
		"vnp_TransactionNo": "14226112",
		"vnp_ResponseCode":  "00",
		"vnp_BankCode":      "NCB",
		"vnp_PayDate":       "20260901120000",
	}
	for k, v := range overrides {
		params[k] = v
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	params["vnp_SecureHash"] = hmacSHA512Hex(g.HashSecret, values.Encode())
	return params
}

func TestVNPayCreatePaymentRequest(t *testing.T) {
	g := testVNPay()
	p, b := testPayment()

	redirect, err := g.CreatePaymentRequest(p, b)
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	q := u.Query()

	// Wire amount is x100.
	assert.Equal(t, strconv.FormatInt(p.Amount.Total*100, 10), q.Get("vnp_Amount"))
	assert.Equal(t, p.Reference, q.Get("vnp_TxnRef"))
	assert.Equal(t, g.TmnCode, q.Get("vnp_TmnCode"))

	// The redirect must verify under our own callback logic: the signature
	// covers everything except vnp_SecureHash.
	sig := q.Get("vnp_SecureHash")
	require.NotEmpty(t, sig)
	q.Del("vnp_SecureHash")
	assert.Equal(t, hmacSHA512Hex(g.HashSecret, q.Encode()), sig)
}

func TestVNPayVerifyCallback(t *testing.T) {
	g := testVNPay()

	t.Run("valid success callback", func(t *testing.T) {
		res, err := g.VerifyCallback(signedVNPayCallback(g, nil))
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "PXK2M1", res.OrderRef)
		assert.Equal(t, "14226112", res.TransactionID)
		assert.Equal(t, int64(1_200_000), res.Amount)
	})

	t.Run("failure code maps to reason", func(t *testing.T) {
		params := signedVNPayCallback(g, map[string]string{"vnp_ResponseCode": "24"})
		res, err := g.VerifyCallback(params)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "customer cancelled", res.FailureReason)
	})

	t.Run("missing signature", func(t *testing.T) {
		params := signedVNPayCallback(g, nil)
		delete(params, "vnp_SecureHash")
		_, err := g.VerifyCallback(params)
		assert.ErrorIs(t, err, ErrMalformedCallback)
	})

	t.Run("any mutated field is rejected", func(t *testing.T) {
		for _, field := range []string{"vnp_Amount", "vnp_TxnRef", "vnp_TransactionNo", "vnp_ResponseCode"} {
			params := signedVNPayCallback(g, nil)
			params[field] = params[field] + "1"
			_, err := g.VerifyCallback(params)
			assert.ErrorIs(t, err, ErrInvalidSignature, field)
		}
	})

	t.Run("mutated signature is rejected", func(t *testing.T) {
		params := signedVNPayCallback(g, nil)
		sig := params["vnp_SecureHash"]
		if strings.HasPrefix(sig, "a") {
			params["vnp_SecureHash"] = "b" + sig[1:]
		} else {
			params["vnp_SecureHash"] = "a" + sig[1:]
		}
		_, err := g.VerifyCallback(params)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		other := testVNPay()
		other.HashSecret = "different-secret"
		_, err := other.VerifyCallback(signedVNPayCallback(g, nil))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

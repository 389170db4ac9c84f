package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testMoMo() *MoMo {
	return &MoMo{
		BaseURL:     "https://test-payment.momo.vn/v2/gateway/api/create",
		PartnerCode: "MOMOSKYBOOK",
		AccessKey:   "access-key",
		SecretKey:   "momo-test-secret",
		RedirectURL: "https://example.test/payments/momo/return",
		IPNURL:      "https://example.test/api/payments/momo/ipn",
		Logger:      zap.NewNop(),
	}
}

// signedMoMoIPN builds a correctly signed IPN parameter map.
func signedMoMoIPN(g *MoMo, overrides map[string]string) map[string]string {
	params := map[string]string{
		"partnerCode":  g.PartnerCode,
		"orderId":      "PXK2M1",
		"requestId":    "req-1",
		"amount":       "1200000",
		"orderInfo":    "Flight booking AB12CD",
		"orderType":    "momo_wallet",
		"transId":      "2147483901",
		"resultCode":   "0",
		"message":      "Successful.",
		"payType":      "qr",
		"responseTime": "1756700000000",
		"extraData":    "",
	}
	for k, v := range overrides {
		params[k] = v
	}
	params["signature"] = g.ipnSignature(params)
	return params
}

func TestMoMoCreateSignatureFieldOrder(t *testing.T) {
	g := testMoMo()

	// The creation signature covers a provider-fixed field order; this
	// pins the exact raw string so a reordering shows up as a test diff.
	raw := "accessKey=access-key&amount=1200000&extraData=&ipnUrl=" + g.IPNURL +
		"&orderId=PXK2M1&orderInfo=Flight booking AB12CD&partnerCode=" + g.PartnerCode +
		"&redirectUrl=" + g.RedirectURL + "&requestId=req-1&requestType=captureWallet"
	want := hmacSHA256Hex(g.SecretKey, raw)

	got := g.createSignature("req-1", "PXK2M1", "Flight booking AB12CD", "captureWallet", "", 1_200_000)
	assert.Equal(t, want, got)
}

func TestMoMoVerifyCallback(t *testing.T) {
	g := testMoMo()

	t.Run("valid success IPN", func(t *testing.T) {
		res, err := g.VerifyCallback(signedMoMoIPN(g, nil))
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "PXK2M1", res.OrderRef)
		assert.Equal(t, "2147483901", res.TransactionID)
		assert.Equal(t, int64(1_200_000), res.Amount)
	})

	t.Run("declined result code", func(t *testing.T) {
		params := signedMoMoIPN(g, map[string]string{
			"resultCode": "1006",
			"message":    "User denied.",
		})
		res, err := g.VerifyCallback(params)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "user declined the payment", res.FailureReason)
	})

	t.Run("missing signature", func(t *testing.T) {
		params := signedMoMoIPN(g, nil)
		delete(params, "signature")
		_, err := g.VerifyCallback(params)
		assert.ErrorIs(t, err, ErrMalformedCallback)
	})

	t.Run("any mutated field is rejected", func(t *testing.T) {
		for _, field := range []string{"amount", "orderId", "transId", "resultCode", "responseTime"} {
			params := signedMoMoIPN(g, nil)
			params[field] = params[field] + "1"
			_, err := g.VerifyCallback(params)
			assert.ErrorIs(t, err, ErrInvalidSignature, field)
		}
	})

	t.Run("signature from creation field order is rejected", func(t *testing.T) {
		// Signing the IPN with the creation request's field order must
		// fail: the two orders are distinct by contract.
		params := signedMoMoIPN(g, nil)
		params["signature"] = g.createSignature(
			params["requestId"], params["orderId"], params["orderInfo"],
			"captureWallet", params["extraData"], 1_200_000,
		)
		_, err := g.VerifyCallback(params)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

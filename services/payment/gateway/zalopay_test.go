package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testZaloPay() *ZaloPay {
	return &ZaloPay{
		BaseURL:     "https://sb-openapi.zalopay.vn/v2/create",
		AppID:       "2553",
		Key1:        "zalopay-key1-request",
		Key2:        "zalopay-key2-callback",
		CallbackURL: "https://example.test/api/payments/zalopay/callback",
		Logger:      zap.NewNop(),
	}
}

func signedZaloCallback(t *testing.T, g *ZaloPay, mutate func(*zaloCallbackData)) map[string]string {
	t.Helper()
	cb := zaloCallbackData{
		AppID:      2553,
		AppTransID: "260901_PXK2M1",
		AppUser:    "user-1",
		Amount:     1_200_000,
		AppTime:    1756700000000,
		EmbedData:  "{}",
		Item:       "[]",
		ZpTransID:  220901000046,
		ServerTime: 1756700001000,
		Channel:    38,
	}
	if mutate != nil {
		mutate(&cb)
	}
	data, err := json.Marshal(cb)
	require.NoError(t, err)
	return map[string]string{
		"data": string(data),
		"mac":  hmacSHA256Hex(g.Key2, string(data)),
		"type": "1",
	}
}

func TestZaloPayAppTransID(t *testing.T) {
	assert.Equal(t, "PXK2M1", orderRefFromAppTransID("260901_PXK2M1"))
	assert.Equal(t, "PXK2M1", orderRefFromAppTransID("PXK2M1"))
}

func TestZaloPayVerifyCallback(t *testing.T) {
	g := testZaloPay()

	t.Run("valid callback", func(t *testing.T) {
		res, err := g.VerifyCallback(signedZaloCallback(t, g, nil))
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "PXK2M1", res.OrderRef)
		assert.Equal(t, "220901000046", res.TransactionID)
		assert.Equal(t, int64(1_200_000), res.Amount)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := g.VerifyCallback(map[string]string{"data": "{}"})
		assert.ErrorIs(t, err, ErrMalformedCallback)
	})

	t.Run("mutated data is rejected", func(t *testing.T) {
		params := signedZaloCallback(t, g, nil)
		// Flip one byte of the payload after signing.
		data := []byte(params["data"])
		data[len(data)/2] ^= 0x01
		params["data"] = string(data)
		_, err := g.VerifyCallback(params)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("mac computed with key1 is rejected", func(t *testing.T) {
		// Key rotation by direction: the request-signing key must not
		// verify callbacks.
		params := signedZaloCallback(t, g, nil)
		params["mac"] = hmacSHA256Hex(g.Key1, params["data"])
		_, err := g.VerifyCallback(params)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("amount tampering is rejected by the mac", func(t *testing.T) {
		params := signedZaloCallback(t, g, nil)
		honest := signedZaloCallback(t, g, func(cb *zaloCallbackData) { cb.Amount = 1 })
		// Tampered data with the original mac.
		params["data"] = honest["data"]
		_, err := g.VerifyCallback(params)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"skybook/models"

	"go.uber.org/zap"
)

// VNPay redirects the customer with a signed query string: parameters are
// sorted alphabetically, URL-encoded, joined as key=value&... and signed
// with HMAC-SHA512. The signature travels as vnp_SecureHash and is never
// part of the signed data itself.
type VNPay struct {
	BaseURL    string
	TmnCode    string
	HashSecret string
	ReturnURL  string
	Logger     *zap.Logger
}

// vnpResponseCodes maps vnp_ResponseCode to a canonical failure reason.
// "00" is the only success code.
var vnpResponseCodes = map[string]string{
	"00": "",
	"07": "suspected fraud",
	"09": "card not registered for online banking",
	"10": "authentication failed more than 3 times",
	"11": "payment window expired",
	"12": "card or account locked",
	"13": "wrong OTP",
	"24": "customer cancelled",
	"51": "insufficient funds",
	"65": "daily transaction limit exceeded",
	"75": "bank under maintenance",
	"79": "wrong payment password too many times",
	"99": "unknown error",
}

func (g *VNPay) Name() string { return "vnpay" }

// CreatePaymentRequest builds the signed redirect URL. VNPay carries
// amounts multiplied by 100 on the wire.
func (g *VNPay) CreatePaymentRequest(p *models.Payment, b *models.Booking) (string, error) {
	now := time.Now()
	params := url.Values{}
	params.Set("vnp_Version", "2.1.0")
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", g.TmnCode)
	params.Set("vnp_Amount", strconv.FormatInt(p.Amount.Total*100, 10))
	params.Set("vnp_CurrCode", p.Amount.Currency)
	params.Set("vnp_TxnRef", p.Reference)
	params.Set("vnp_OrderInfo", fmt.Sprintf("Flight booking %s", b.Reference))
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Locale", "vn")
	params.Set("vnp_ReturnUrl", g.ReturnURL)
	params.Set("vnp_CreateDate", now.Format("20060102150405"))
	params.Set("vnp_ExpireDate", p.ExpiresAt.Format("20060102150405"))

	// Encode sorts keys alphabetically and URL-encodes values: exactly the
	// canonical form VNPay signs.
	signData := params.Encode()
	sig := hmacSHA512Hex(g.HashSecret, signData)
	return g.BaseURL + "?" + signData + "&vnp_SecureHash=" + sig, nil
}

// VerifyCallback recomputes the signature over every vnp_ parameter except
// the hash fields themselves and compares in constant time.
func (g *VNPay) VerifyCallback(raw map[string]string) (*CallbackResult, error) {
	supplied, ok := raw["vnp_SecureHash"]
	if !ok || supplied == "" {
		return nil, ErrMalformedCallback
	}

	params := url.Values{}
	for k, v := range raw {
		if k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		params.Set(k, v)
	}
	expected := hmacSHA512Hex(g.HashSecret, params.Encode())
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(supplied))) {
		return nil, ErrInvalidSignature
	}

	wireAmount, err := strconv.ParseInt(raw["vnp_Amount"], 10, 64)
	if err != nil || wireAmount%100 != 0 {
		return nil, ErrMalformedCallback
	}

	code := raw["vnp_ResponseCode"]
	reason, known := vnpResponseCodes[code]
	if !known {
		reason = "unrecognized response code " + code
	}
	return &CallbackResult{
		OrderRef:      raw["vnp_TxnRef"],
		TransactionID: raw["vnp_TransactionNo"],
		Amount:        wireAmount / 100,
		Success:       code == "00",
		ResponseCode:  code,
		FailureReason: reason,
	}, nil
}

func hmacSHA512Hex(secret, data string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

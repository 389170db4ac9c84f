package gateway

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"skybook/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MoMo signs a fixed-order concatenation of named fields with HMAC-SHA256.
// The creation request and the IPN callback each have their own
// provider-defined field order; neither is alphabetical and both must be
// replicated field-for-field.
type MoMo struct {
	BaseURL     string
	PartnerCode string
	AccessKey   string
	SecretKey   string
	RedirectURL string
	IPNURL      string
	Logger      *zap.Logger
}

// momoResultCodes maps resultCode to a canonical failure reason. 0 is the
// only final success code.
var momoResultCodes = map[string]string{
	"0":    "",
	"9000": "transaction authorized but not captured",
	"1000": "transaction initiated, awaiting user",
	"1001": "insufficient funds",
	"1003": "transaction cancelled",
	"1004": "amount exceeds per-transaction limit",
	"1005": "payment url expired",
	"1006": "user declined the payment",
	"1007": "account inactive or not found",
	"2001": "wrong credentials",
	"4001": "account restricted",
	"7000": "transaction being processed",
	"49":   "request rejected by risk system",
}

type momoCreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	AccessKey   string `json:"accessKey"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	RequestType string `json:"requestType"`
	ExtraData   string `json:"extraData"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type momoCreateResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
}

func (g *MoMo) Name() string { return "momo" }

// createSignature signs the creation request. Field order is MoMo's, not
// ours: accessKey, amount, extraData, ipnUrl, orderId, orderInfo,
// partnerCode, redirectUrl, requestId, requestType.
func (g *MoMo) createSignature(requestID, orderID, orderInfo, requestType, extraData string, amount int64) string {
	raw := fmt.Sprintf(
		"accessKey=%s&amount=%d&extraData=%s&ipnUrl=%s&orderId=%s&orderInfo=%s&partnerCode=%s&redirectUrl=%s&requestId=%s&requestType=%s",
		g.AccessKey, amount, extraData, g.IPNURL, orderID, orderInfo,
		g.PartnerCode, g.RedirectURL, requestID, requestType,
	)
	return hmacSHA256Hex(g.SecretKey, raw)
}

// ipnSignature signs the callback. The IPN has its own field order,
// distinct from creation: accessKey, amount, extraData, message, orderId,
// orderInfo, orderType, partnerCode, payType, requestId, responseTime,
// resultCode, transId. accessKey is ours and is not carried in the body.
func (g *MoMo) ipnSignature(p map[string]string) string {
	raw := fmt.Sprintf(
		"accessKey=%s&amount=%s&extraData=%s&message=%s&orderId=%s&orderInfo=%s&orderType=%s&partnerCode=%s&payType=%s&requestId=%s&responseTime=%s&resultCode=%s&transId=%s",
		g.AccessKey, p["amount"], p["extraData"], p["message"], p["orderId"],
		p["orderInfo"], p["orderType"], p["partnerCode"], p["payType"],
		p["requestId"], p["responseTime"], p["resultCode"], p["transId"],
	)
	return hmacSHA256Hex(g.SecretKey, raw)
}

// CreatePaymentRequest posts a signed creation request to MoMo and returns
// the pay URL the customer is redirected to.
func (g *MoMo) CreatePaymentRequest(p *models.Payment, b *models.Booking) (string, error) {
	requestID := uuid.New().String()
	orderInfo := fmt.Sprintf("Flight booking %s", b.Reference)
	const requestType = "captureWallet"

	req := momoCreateRequest{
		PartnerCode: g.PartnerCode,
		AccessKey:   g.AccessKey,
		RequestID:   requestID,
		Amount:      p.Amount.Total,
		OrderID:     p.Reference,
		OrderInfo:   orderInfo,
		RedirectURL: g.RedirectURL,
		IPNURL:      g.IPNURL,
		RequestType: requestType,
		ExtraData:   "",
		Lang:        "vi",
		Signature:   g.createSignature(requestID, p.Reference, orderInfo, requestType, "", p.Amount.Total),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal momo request: %w", err)
	}

	resp, err := httpClient.Post(g.BaseURL, "application/json", bytes.NewReader(body))
	if err != nil {
		g.Logger.Error("momo create request failed", zap.Error(err))
		return "", ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.Logger.Error("momo create request rejected", zap.Int("status", resp.StatusCode))
		return "", ErrGatewayUnavailable
	}
	var out momoCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode momo response: %w", err)
	}
	if out.ResultCode != 0 {
		return "", fmt.Errorf("momo rejected payment request: %d %s", out.ResultCode, out.Message)
	}
	return out.PayURL, nil
}

// VerifyCallback validates an IPN body (flattened to string fields).
func (g *MoMo) VerifyCallback(params map[string]string) (*CallbackResult, error) {
	supplied, ok := params["signature"]
	if !ok || supplied == "" {
		return nil, ErrMalformedCallback
	}
	expected := g.ipnSignature(params)
	if !hmac.Equal([]byte(expected), []byte(supplied)) {
		return nil, ErrInvalidSignature
	}

	amount, err := strconv.ParseInt(params["amount"], 10, 64)
	if err != nil {
		return nil, ErrMalformedCallback
	}

	code := params["resultCode"]
	reason, known := momoResultCodes[code]
	if !known {
		reason = "unrecognized result code " + code
	}
	return &CallbackResult{
		OrderRef:      params["orderId"],
		TransactionID: params["transId"],
		Amount:        amount,
		Success:       code == "0",
		ResponseCode:  code,
		FailureReason: reason,
	}, nil
}

func hmacSHA256Hex(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

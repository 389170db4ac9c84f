package gateway

import (
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"skybook/models"

	"go.uber.org/zap"
)

// ZaloPay signs a pipe-joined field concatenation with HMAC-SHA256 and
// rotates keys by direction: key1 signs outbound creation requests, key2
// verifies inbound callbacks. Using the wrong key for a direction fails
// every verification, by contract.
type ZaloPay struct {
	BaseURL     string
	AppID       string
	Key1        string
	Key2        string
	CallbackURL string
	Logger      *zap.Logger
}

type zaloCreateResponse struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
	OrderURL      string `json:"order_url"`
}

// zaloCallbackData is the JSON carried inside the callback's data field.
type zaloCallbackData struct {
	AppID      int    `json:"app_id"`
	AppTransID string `json:"app_trans_id"`
	AppUser    string `json:"app_user"`
	Amount     int64  `json:"amount"`
	AppTime    int64  `json:"app_time"`
	EmbedData  string `json:"embed_data"`
	Item       string `json:"item"`
	ZpTransID  int64  `json:"zp_trans_id"`
	ServerTime int64  `json:"server_time"`
	Channel    int    `json:"channel"`
}

func (g *ZaloPay) Name() string { return "zalopay" }

// appTransID builds ZaloPay's yymmdd_reference order id. The date prefix
// is a provider requirement, not ours.
func (g *ZaloPay) appTransID(reference string, at time.Time) string {
	return at.Format("060102") + "_" + reference
}

// orderRefFromAppTransID strips the date prefix back off.
func orderRefFromAppTransID(appTransID string) string {
	if i := strings.IndexByte(appTransID, '_'); i >= 0 {
		return appTransID[i+1:]
	}
	return appTransID
}

// CreatePaymentRequest posts a key1-signed order to ZaloPay and returns
// the order URL. The mac covers appid|apptransid|appuser|amount|apptime|
// embeddata|item, in that exact order.
func (g *ZaloPay) CreatePaymentRequest(p *models.Payment, b *models.Booking) (string, error) {
	now := time.Now()
	appTransID := g.appTransID(p.Reference, now)
	appUser := b.UserID
	appTime := strconv.FormatInt(now.UnixMilli(), 10)
	embedData := "{}"
	item := "[]"
	amount := strconv.FormatInt(p.Amount.Total, 10)

	macData := strings.Join([]string{
		g.AppID, appTransID, appUser, amount, appTime, embedData, item,
	}, "|")
	mac := hmacSHA256Hex(g.Key1, macData)

	form := url.Values{}
	form.Set("app_id", g.AppID)
	form.Set("app_trans_id", appTransID)
	form.Set("app_user", appUser)
	form.Set("amount", amount)
	form.Set("app_time", appTime)
	form.Set("embed_data", embedData)
	form.Set("item", item)
	form.Set("description", fmt.Sprintf("Flight booking %s", b.Reference))
	form.Set("callback_url", g.CallbackURL)
	form.Set("mac", mac)

	resp, err := httpClient.PostForm(g.BaseURL, form)
	if err != nil {
		g.Logger.Error("zalopay create request failed", zap.Error(err))
		return "", ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.Logger.Error("zalopay create request rejected", zap.Int("status", resp.StatusCode))
		return "", ErrGatewayUnavailable
	}
	var out zaloCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode zalopay response: %w", err)
	}
	if out.ReturnCode != 1 {
		return "", fmt.Errorf("zalopay rejected payment request: %d %s", out.ReturnCode, out.ReturnMessage)
	}
	return out.OrderURL, nil
}

// VerifyCallback checks the key2 mac over the raw data string, then parses
// the data. ZaloPay only calls back for successful payments; a verified
// callback is a success outcome.
func (g *ZaloPay) VerifyCallback(params map[string]string) (*CallbackResult, error) {
	data, okData := params["data"]
	supplied, okMac := params["mac"]
	if !okData || !okMac || data == "" || supplied == "" {
		return nil, ErrMalformedCallback
	}

	// The mac covers the raw data string byte-for-byte. Re-serializing the
	// JSON would re-order keys and break verification.
	expected := hmacSHA256Hex(g.Key2, data)
	if !hmac.Equal([]byte(expected), []byte(supplied)) {
		return nil, ErrInvalidSignature
	}

	var cb zaloCallbackData
	if err := json.Unmarshal([]byte(data), &cb); err != nil {
		return nil, ErrMalformedCallback
	}
	return &CallbackResult{
		OrderRef:      orderRefFromAppTransID(cb.AppTransID),
		TransactionID: strconv.FormatInt(cb.ZpTransID, 10),
		Amount:        cb.Amount,
		Success:       true,
		ResponseCode:  "1",
	}, nil
}

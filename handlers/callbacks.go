package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"skybook/services/payment"
	"skybook/services/payment/gateway"
	"skybook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Gateway callbacks are the only unauthenticated write surface, so every
// handler verifies the provider's signature before anything else and the
// raw payload is logged by hash only.

// VNPayIPNHandler processes VNPay's server-to-server notification. VNPay
// retries until it receives RspCode 00, so every outcome maps to one of
// its acknowledgement codes.
func VNPayIPNHandler(c *gin.Context) {
	params := map[string]string{}
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	logCallback(c, "vnpay", []byte(c.Request.URL.RawQuery))

	gw, err := Gateways.Get("vnpay")
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"RspCode": "99", "Message": "Unknown error"})
		return
	}
	res, err := gw.VerifyCallback(params)
	switch {
	case errors.Is(err, gateway.ErrInvalidSignature):
		c.JSON(http.StatusOK, gin.H{"RspCode": "97", "Message": "Invalid signature"})
		return
	case err != nil:
		c.JSON(http.StatusOK, gin.H{"RspCode": "99", "Message": "Malformed request"})
		return
	}

	_, err = PaymentService.ApplyCallback(c.Request.Context(), "vnpay", res)
	switch {
	case errors.Is(err, payment.ErrPaymentNotFound):
		c.JSON(http.StatusOK, gin.H{"RspCode": "01", "Message": "Order not found"})
	case errors.Is(err, payment.ErrAmountMismatch):
		c.JSON(http.StatusOK, gin.H{"RspCode": "04", "Message": "Invalid amount"})
	case err != nil:
		c.JSON(http.StatusOK, gin.H{"RspCode": "99", "Message": "Unknown error"})
	default:
		c.JSON(http.StatusOK, gin.H{"RspCode": "00", "Message": "Confirm success"})
	}
}

// VNPayReturnHandler serves the customer's browser redirect. It verifies
// and records the outcome like the IPN does (either may arrive first),
// then answers in our own shape for the frontend.
func VNPayReturnHandler(c *gin.Context) {
	params := map[string]string{}
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	gw, err := Gateways.Get("vnpay")
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	res, err := gw.VerifyCallback(params)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid callback", err.Error())
		return
	}

	p, err := PaymentService.ApplyCallback(c.Request.Context(), "vnpay", res)
	if err != nil && !errors.Is(err, payment.ErrAmountMismatch) {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			utils.JSONError(c, http.StatusNotFound, "payment not found", "")
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"reference": res.OrderRef, "status": p.Overall})
}

// MoMoIPNHandler processes MoMo's JSON IPN. MoMo expects 204 No Content
// as the acknowledgement.
func MoMoIPNHandler(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	logCallback(c, "momo", raw)

	params, err := flattenJSON(raw)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	gw, err := Gateways.Get("momo")
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	res, err := gw.VerifyCallback(params)
	switch {
	case errors.Is(err, gateway.ErrInvalidSignature):
		c.Status(http.StatusForbidden)
		return
	case err != nil:
		c.Status(http.StatusBadRequest)
		return
	}

	if _, err := PaymentService.ApplyCallback(c.Request.Context(), "momo", res); err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		// Amount mismatch included: the outcome is recorded, ack it so
		// MoMo stops retrying.
	}
	c.Status(http.StatusNoContent)
}

// ZaloPayCallbackHandler processes ZaloPay's callback. ZaloPay retries
// on return_code 0 and gives up on -1; 1 acknowledges success.
func ZaloPayCallbackHandler(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"return_code": 0, "return_message": "unreadable body"})
		return
	}
	logCallback(c, "zalopay", raw)

	var body struct {
		Data string `json:"data"`
		Mac  string `json:"mac"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		c.JSON(http.StatusOK, gin.H{"return_code": -1, "return_message": "malformed body"})
		return
	}

	gw, err := Gateways.Get("zalopay")
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"return_code": 0, "return_message": "internal error"})
		return
	}
	res, err := gw.VerifyCallback(map[string]string{"data": body.Data, "mac": body.Mac})
	switch {
	case errors.Is(err, gateway.ErrInvalidSignature):
		c.JSON(http.StatusOK, gin.H{"return_code": -1, "return_message": "mac not equal"})
		return
	case err != nil:
		c.JSON(http.StatusOK, gin.H{"return_code": -1, "return_message": "malformed callback"})
		return
	}

	if _, err := PaymentService.ApplyCallback(c.Request.Context(), "zalopay", res); err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			c.JSON(http.StatusOK, gin.H{"return_code": -1, "return_message": "order not found"})
			return
		}
		if !errors.Is(err, payment.ErrAmountMismatch) {
			c.JSON(http.StatusOK, gin.H{"return_code": 0, "return_message": "processing error, retry"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"return_code": 1, "return_message": "success"})
}

// flattenJSON turns a one-level JSON object into string fields, keeping
// numbers in their wire form so signature verification sees the exact
// digits the provider signed.
func flattenJSON(raw []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			if val {
				out[k] = "true"
			} else {
				out[k] = "false"
			}
		case nil:
			out[k] = ""
		default:
			// Nested values never participate in provider signatures.
		}
	}
	return out, nil
}

func logCallback(c *gin.Context, provider string, raw []byte) {
	utils.GetLogger().Info("gateway callback received",
		zap.String("provider", provider),
		zap.String("payload_sha256", utils.PayloadHash(raw)),
		zap.String("ip", c.ClientIP()))
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"skybook/services/payment"
	"skybook/utils"

	"github.com/gin-gonic/gin"
)

// Status responses are cached briefly to shield the derivation path from
// redirect-page polling. Five seconds is short enough that a landing
// callback is still visible almost immediately.
const statusCacheTTL = 5 * time.Second

// PaymentStatusHandler returns a payment with its overall status derived
// fresh from the transaction ledger.
func PaymentStatusHandler(c *gin.Context) {
	id := c.Param("id")
	cacheKey := "payment_status:" + id
	cache := utils.GetCacheClient()
	ctx := c.Request.Context()

	if cached, err := cache.Get(ctx, cacheKey).Bytes(); err == nil {
		c.Data(http.StatusOK, "application/json", cached)
		return
	}

	p, err := PaymentService.Status(ctx, id)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			utils.JSONError(c, http.StatusNotFound, "payment not found", "")
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "internal error", err.Error())
		return
	}

	body, err := json.Marshal(p)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	// Cache write failures only cost us the shield, not correctness.
	cache.Set(context.Background(), cacheKey, body, statusCacheTTL)
	c.Data(http.StatusOK, "application/json", body)
}

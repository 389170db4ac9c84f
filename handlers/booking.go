package handlers

import (
	"errors"
	"net/http"

	inventoryRepo "skybook/database/repository/inventory"
	"skybook/models"
	"skybook/services/booking"
	"skybook/services/codes"
	"skybook/services/payment"
	"skybook/services/payment/gateway"
	"skybook/utils"

	"github.com/gin-gonic/gin"
)

// Services are assembled in main and injected here before the router
// starts serving.
var (
	BookingService *booking.Service
	PaymentService *payment.Service
	Gateways       *gateway.Registry
)

// CreateBookingHandler opens a booking and its first payment attempt.
func CreateBookingHandler(c *gin.Context) {
	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	resp, err := BookingService.CreateBooking(c.Request.Context(), &req)
	if errors.Is(err, gateway.ErrGatewayUnavailable) {
		// The booking survives; the customer retries payment against it.
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "payment gateway unavailable, retry payment later",
			"booking":   resp.Booking,
			"paymentId": resp.PaymentID,
		})
		return
	}
	if err != nil {
		bookingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetBookingHandler returns a booking by its reference.
func GetBookingHandler(c *gin.Context) {
	b, err := BookingService.GetBooking(c.Request.Context(), c.Param("reference"))
	if err != nil {
		bookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// RetryPaymentHandler opens a fresh payment attempt for a pending booking.
func RetryPaymentHandler(c *gin.Context) {
	var req struct {
		Provider string `json:"provider"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	resp, err := BookingService.RetryPayment(c.Request.Context(), c.Param("reference"), req.Provider)
	if errors.Is(err, gateway.ErrGatewayUnavailable) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "payment gateway unavailable, retry payment later",
			"booking":   resp.Booking,
			"paymentId": resp.PaymentID,
		})
		return
	}
	if err != nil {
		bookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CancelBookingHandler cancels a booking, releasing or returning its
// seats depending on lifecycle state.
func CancelBookingHandler(c *gin.Context) {
	if err := BookingService.CancelBooking(c.Request.Context(), c.Param("reference")); err != nil {
		bookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.BookingCancelled})
}

// bookingError maps service errors onto the HTTP taxonomy.
func bookingError(c *gin.Context, err error) {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.JSONError(c, http.StatusBadRequest, "validation failed", verr.Error())
	case errors.Is(err, inventoryRepo.ErrInsufficientInventory):
		utils.JSONError(c, http.StatusConflict, "not enough seats available", err.Error())
	case errors.Is(err, booking.ErrBookingNotFound):
		utils.JSONError(c, http.StatusNotFound, "booking not found", "")
	case errors.Is(err, booking.ErrRetryWindowClosed):
		utils.JSONError(c, http.StatusGone, "booking retry window closed", "")
	case errors.Is(err, booking.ErrNotRetryable),
		errors.Is(err, booking.ErrNotCancellable),
		errors.Is(err, booking.ErrFlightNotBookable):
		utils.JSONError(c, http.StatusConflict, "booking state does not allow this", err.Error())
	case errors.Is(err, codes.ErrCodeNotFound),
		errors.Is(err, codes.ErrCodeNotYetActive),
		errors.Is(err, codes.ErrCodeExpired),
		errors.Is(err, codes.ErrCodeInactive),
		errors.Is(err, codes.ErrUsageExhausted),
		errors.Is(err, codes.ErrUserUsageExceeded):
		utils.JSONError(c, http.StatusBadRequest, "payment code rejected", err.Error())
	default:
		utils.JSONError(c, http.StatusInternalServerError, "internal error", err.Error())
	}
}

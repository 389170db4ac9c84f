package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skybook/config"
	"skybook/cron"
	"skybook/database"
	bookingRepo "skybook/database/repository/booking"
	catalogRepo "skybook/database/repository/catalog"
	inventoryRepo "skybook/database/repository/inventory"
	paymentRepo "skybook/database/repository/payment"
	codeRepo "skybook/database/repository/paymentcode"
	"skybook/handlers"
	"skybook/middleware"
	"skybook/routes"
	"skybook/services/booking"
	"skybook/services/codes"
	"skybook/services/notification"
	"skybook/services/payment"
	"skybook/services/payment/gateway"
	"skybook/services/pii"
	"skybook/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()

	codec, err := pii.New(config.AppConfig.PIIKey, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize field encryption: %v", err)
	}

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	// repositories.
	bookings := bookingRepo.NewMongoBookingRepo(codec)
	payments := paymentRepo.NewMongoPaymentRepo()
	inventory := inventoryRepo.NewMongoInventoryRepo()
	catalog := catalogRepo.NewMongoCatalogRepo()
	paymentCodes := codeRepo.NewMongoPaymentCodeRepo()

	// gateway adapters.
	gateways := gateway.NewRegistry(
		&gateway.VNPay{
			BaseURL:    config.AppConfig.VNPayBaseURL,
			TmnCode:    config.AppConfig.VNPayTmnCode,
			HashSecret: config.AppConfig.VNPaySecret,
			ReturnURL:  config.AppConfig.VNPayReturnURL,
			Logger:     logger,
		},
		&gateway.MoMo{
			BaseURL:     config.AppConfig.MoMoBaseURL,
			PartnerCode: config.AppConfig.MoMoPartnerCode,
			AccessKey:   config.AppConfig.MoMoAccessKey,
			SecretKey:   config.AppConfig.MoMoSecret,
			RedirectURL: config.AppConfig.MoMoRedirectURL,
			IPNURL:      config.AppConfig.MoMoIPNURL,
			Logger:      logger,
		},
		&gateway.ZaloPay{
			BaseURL:     config.AppConfig.ZaloPayBaseURL,
			AppID:       config.AppConfig.ZaloPayAppID,
			Key1:        config.AppConfig.ZaloPayKey1,
			Key2:        config.AppConfig.ZaloPayKey2,
			CallbackURL: config.AppConfig.ZaloPayCallbackURL,
			Logger:      logger,
		},
	)

	// services.
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer asynqClient.Close()
	notifier := notification.NewQueueNotifier(asynqClient, logger)

	codeEngine := codes.NewEngine(paymentCodes, logger)

	paymentService := &payment.Service{
		Payments:      payments,
		Bookings:      bookings,
		Inventory:     inventory,
		Codes:         codeEngine,
		Notifier:      notifier,
		Logger:        logger,
		BookingWindow: config.BookingWindow(),
	}
	bookingService := &booking.Service{
		Bookings:      bookings,
		Payments:      payments,
		Inventory:     inventory,
		Catalog:       catalog,
		Codes:         codeEngine,
		Gateways:      gateways,
		Logger:        logger,
		PaymentWindow: config.PaymentWindow(),
		BookingWindow: config.BookingWindow(),
	}

	handlers.BookingService = bookingService
	handlers.PaymentService = paymentService
	handlers.Gateways = gateways

	routes.RegisterRoutes(router)

	// Background worker: notifications plus the expiry and purge sweeps.
	cron.InitWorker(paymentService, bookingService, codeEngine)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}

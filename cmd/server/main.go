package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	authhandler "ccak/internal/auth/handler"
	authservice "ccak/internal/auth/service"
	"ccak/internal/auth/token"
	billinghandler "ccak/internal/billing/handler"
	billingmetrics "ccak/internal/billing/metrics"
	billingservice "ccak/internal/billing/service"
	invoicestore "ccak/internal/billing/store/invoice"
	paymentstore "ccak/internal/billing/store/payment"
	"ccak/internal/dashboard"
	donationhandler "ccak/internal/donation/handler"
	donationservice "ccak/internal/donation/service"
	donationstore "ccak/internal/donation/store"
	httpapi "ccak/internal/http"
	membershiphandler "ccak/internal/membership/handler"
	membershipservice "ccak/internal/membership/service"
	administratorstore "ccak/internal/membership/store/administrator"
	memberstore "ccak/internal/membership/store/member"
	"ccak/internal/notification"
	"ccak/internal/platform/config"
	"ccak/internal/platform/httpserver"
	"ccak/internal/platform/kafka"
	"ccak/internal/platform/logger"
	"ccak/internal/platform/postgres"
	platformredis "ccak/internal/platform/redis"
)

func main() {
	// Missing .env is fine; the environment may be set by the deployment.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: Postgres when configured, in-memory otherwise (dev mode).
	var (
		invoices  billingservice.InvoiceStore
		invReader billingservice.InvoiceReader
		payments  billingservice.PaymentStore
		members   membershipservice.MemberStore
		memberFbe authservice.MemberFinder
		admins    membershipservice.AdministratorStore
		donations donationservice.Store
		dashInv   dashboard.InvoiceLister
		dashDon   dashboard.DonationTotaler
		dashMem   dashboard.MemberCounter
		dashAdm   dashboard.AdministratorCounter
		health    httpapi.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		inv := invoicestore.NewPostgres(db)
		pay := paymentstore.NewPostgres(db)
		mem := memberstore.NewPostgres(db)
		adm := administratorstore.NewPostgres(db)
		don := donationstore.NewPostgres(db)
		invoices, invReader, payments = inv, inv, pay
		members, memberFbe, admins, donations = mem, mem, adm, don
		dashInv, dashDon, dashMem, dashAdm = inv, don, mem, adm
		health = func() error { return db.PingContext(context.Background()) }
		log.Info("using postgres stores")
	} else {
		inv := invoicestore.NewInMemory()
		pay := paymentstore.NewInMemory()
		mem := memberstore.NewInMemory()
		adm := administratorstore.NewInMemory()
		don := donationstore.NewInMemory()
		invoices, invReader, payments = inv, inv, pay
		members, memberFbe, admins, donations = mem, mem, adm, don
		dashInv, dashDon, dashMem, dashAdm = inv, don, mem, adm
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	events, err := kafka.NewPublisher(cfg.Kafka, log)
	if err != nil {
		log.Error("failed to create kafka publisher", "error", err)
		os.Exit(1)
	}
	if events != nil {
		defer events.Close()
	}

	billingMetrics := billingmetrics.New()

	var sender notification.Sender = notification.NewSMTP(cfg.SMTP)
	if cfg.SMTP.Host == "" {
		log.Warn("EMAIL_HOST not set, notifications will be logged and dropped")
		sender = notification.SenderFunc(func(ctx context.Context, msg notification.Message) error {
			log.InfoContext(ctx, "notification (no smtp configured)",
				"recipient", msg.Recipient, "subject", msg.Subject, "template", msg.Template)
			return nil
		})
	}
	dispatcher := notification.NewDispatcher(sender, log,
		notification.WithFailureHook(billingMetrics.IncrementNotificationFailures))
	defer dispatcher.Close()

	// Services.
	memberSvc := membershipservice.NewMemberService(members, log)
	adminSvc := membershipservice.NewAdministratorService(admins, log)
	donationSvc := donationservice.New(donations, log)

	completion := billingservice.NewCompletionDispatcher(
		memberSvc, donationSvc, dispatcher, cfg.FinanceRecipient, billingMetrics, log)
	reconciler := billingservice.NewReconciler(
		invReader, payments, completion, events, redisClient, billingMetrics, log)
	invoiceSvc := billingservice.NewInvoiceService(invoices, log)
	paymentSvc := billingservice.NewPaymentService(payments, reconciler, billingMetrics, log)

	tokens := token.NewService(cfg.JWTSigningKey, "ccak", cfg.TokenTTL)
	authSvc := authservice.New(memberFbe, admins, tokens, log)
	dashboardSvc := dashboard.New(dashInv, dashDon, dashMem, dashAdm, log)

	router := httpapi.NewRouter(log, health,
		authhandler.New(authSvc, log),
		membershiphandler.New(memberSvc, adminSvc, tokens, log),
		donationhandler.New(donationSvc, tokens, log),
		billinghandler.NewInvoiceHandler(invoiceSvc, reconciler, tokens, log),
		billinghandler.NewPaymentHandler(paymentSvc, tokens, log),
		dashboard.NewHandler(dashboardSvc, tokens, log),
	)

	server := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

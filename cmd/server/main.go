package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gigpay/escrowhub/db"
	"github.com/gigpay/escrowhub/db/migrations"
	"github.com/gigpay/escrowhub/gateway"
	"github.com/gigpay/escrowhub/lib"
	"github.com/gigpay/escrowhub/lib/service"
	"github.com/gigpay/escrowhub/lib/tokens"
	"github.com/gigpay/escrowhub/lib/transport"
	"github.com/gigpay/escrowhub/rabbitmq"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/uptrace/bun/migrate"
)

func main() {

	c := &service.Config{}

	// Load configuration from environment variables
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}

	// Setup logging to STDOUT or a configured log file
	logger := lib.Logger(c.LogFilePath)

	// Open a DB connection based on the configured DATABASE_URI
	dbConn, err := db.Open(c)
	if err != nil {
		logger.Fatalf("Error initializing db connection: %v", err)
	}

	// Migrate the DB
	startupCtx := context.Background()
	migrator := migrate.NewMigrator(dbConn, migrations.Migrations)
	err = migrator.Init(startupCtx)
	if err != nil {
		logger.Fatalf("Error initializing db migrator: %v", err)
	}
	_, err = migrator.Migrate(startupCtx)
	if err != nil {
		logger.Fatalf("Error migrating database: %v", err)
	}

	// Setup exception tracking with Sentry if configured
	// sentry init needs to happen before the echo middlewares are added
	if c.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{
			Dsn:              c.SentryDSN,
			IgnoreErrors:     []string{"401"},
			EnableTracing:    c.SentryTracesSampleRate > 0,
			TracesSampleRate: c.SentryTracesSampleRate,
		}); err != nil {
			logger.Errorf("sentry init error: %v", err)
		}
	}

	// Payment gateway client
	gatewayClient := gateway.NewRestClient(c.GatewayBaseUrl, c.GatewayApiKey, time.Duration(c.GatewayTimeout)*time.Second)

	// If no RABBITMQ_URI was provided we will not attempt to create a
	// notifier. Notifications will be silently skipped in this case.
	var notifier service.Notifier
	if c.RabbitMQUri != "" {
		rabbitNotifier, err := rabbitmq.Dial(c.RabbitMQUri,
			rabbitmq.WithExchange(c.RabbitMQNotificationExchange),
			rabbitmq.WithLogger(logger),
		)
		if err != nil {
			logger.Fatal(err)
		}
		// close the connection gently at the end of the runtime
		defer rabbitNotifier.Close()
		notifier = rabbitNotifier
	}

	svc := &service.EscrowhubService{
		Config:   c,
		DB:       dbConn,
		Gateway:  gatewayClient,
		Logger:   logger,
		Notifier: notifier,
	}

	//init echo server
	e := transport.InitEcho(c, logger)

	logMw := transport.CreateLoggingMiddleware(logger)
	// strict rate limit for requests that trigger gateway calls
	strictRateLimitMiddleware := transport.CreateRateLimitMiddleware(c.StrictRateLimit, c.BurstRateLimit)

	secured := e.Group("", tokens.Middleware(c.JWTSecret), logMw)
	securedWithStrictRateLimit := e.Group("", tokens.Middleware(c.JWTSecret), strictRateLimitMiddleware, logMw)

	transport.RegisterEndpoints(svc, e, secured, securedWithStrictRateLimit, tokens.AdminTokenMiddleware(c.AdminToken), logMw)

	var backgroundWg sync.WaitGroup
	backGroundCtx, _ := signal.NotifyContext(context.Background(), os.Interrupt)
	// Re-check payouts stuck between the approval and the transfer outcome
	backgroundWg.Add(1)
	go func() {
		err = svc.StartStalePayoutRoutine(backGroundCtx)
		if err != nil && err != context.Canceled {
			sentry.CaptureException(err)
			svc.Logger.Error(err)
		}
		svc.Logger.Info("Stale payout routine done")
		backgroundWg.Done()
	}()

	// Start server
	go func() {
		if err := e.Start(fmt.Sprintf(":%v", c.Port)); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server", err)
		}
	}()

	<-backGroundCtx.Done()
	// Stop the background routines and drain in-flight requests
	backgroundWg.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Fatal(err)
	}
}

package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gigpay/escrowhub/db"
	"github.com/gigpay/escrowhub/lib"
	"github.com/gigpay/escrowhub/lib/service"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Compares every wallet's cached balance against the sum of its ledger
// entries and reports mismatches. Intended to run as a cron job.
func main() {
	c := &service.Config{}

	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}

	logger := lib.Logger(c.LogFilePath)

	dbConn, err := db.Open(c)
	if err != nil {
		logger.Fatalf("Error initializing db connection: %v", err)
	}

	svc := &service.EscrowhubService{
		Config: c,
		DB:     dbConn,
		Logger: logger,
	}

	ctx := context.Background()
	mismatches, err := svc.ReconcileWallets(ctx)
	if err != nil {
		logger.Fatalf("Error reconciling wallets: %v", err)
	}
	if len(mismatches) == 0 {
		logger.Info("All wallet balances match their ledger")
		return
	}
	for _, mismatch := range mismatches {
		logger.Errorf("Balance mismatch wallet_id:%v cached:%v ledger:%v", mismatch.WalletID, mismatch.CachedBalance, mismatch.LedgerBalance)
	}
}

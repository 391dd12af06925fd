package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"ledger/internal/app/customers"
	"ledger/internal/config"
	"ledger/internal/infrastructure/database"
	"ledger/internal/infrastructure/observability"
	"ledger/internal/repository/customers_repo"
)

func main() {
	idNo := flag.String("id", "", "identification number")
	name := flag.String("name", "", "full name")
	email := flag.String("email", "", "email address")
	password := flag.String("password", "", "plaintext password")
	flag.Parse()
	if *idNo == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "--id and --password are required")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.NewPostgresDB(cfg.DBConfig)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	directory := customers.NewDirectory(db, customers_repo.NewCustomerRepository(), logger)
	customer, err := directory.Register(ctx, *idNo, *name, *email, *password)
	if err != nil {
		logger.Fatal("Failed to register customer", zap.String("identification_no", *idNo), zap.Error(err))
	}
	fmt.Printf("Customer %s registered with id %s\n", customer.IdentificationNo, customer.ID)
}

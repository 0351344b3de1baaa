package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"estate-backend/config"
	"estate-backend/services"
)

func main() {
	email := flag.String("email", "", "admin email")
	password := flag.String("password", "", "admin password")
	flag.Parse()

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: create-admin -email admin@example.com -password secret")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.InitLogger(cfg.App)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	db, err := config.ConnectDatabase(cfg.Database, logger)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, created, err := services.NewAdminService(db).Upsert(ctx, *email, *password)
	if err != nil {
		logger.Fatal("create admin failed", zap.Error(err))
	}

	if created {
		logger.Info("admin created", zap.Uint("id", admin.ID), zap.String("email", admin.Email))
	} else {
		logger.Info("admin reactivated with new password", zap.Uint("id", admin.ID), zap.String("email", admin.Email))
	}
}

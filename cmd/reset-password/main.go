// Command reset-password sets a user's password directly in the database.
//
//	reset-password -email admin@example.com -password newsecret
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go-stock-ledger/internal/config"
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/pkg/database"
	"go-stock-ledger/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	email := flag.String("email", "", "account email (defaults to ADMIN_EMAIL)")
	password := flag.String("password", "", "new password (defaults to ADMIN_PASSWORD)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if *email == "" {
		*email = cfg.AdminEmail
	}
	if *password == "" {
		*password = cfg.AdminPassword
	}
	if len(*password) < 6 {
		log.Fatal("password must be at least 6 characters")
	}

	db, err := database.ConnectDB(database.Options{
		DSN:             cfg.DSN(),
		MaxIdleConns:    1,
		MaxOpenConns:    1,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		SlowThreshold:   cfg.DBSlowThreshold,
		LogLevel:        gormlogger.Silent,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	ctx := context.Background()
	users := repository.NewUserRepo(db)
	user, err := users.FindByEmail(ctx, *email)
	if err != nil {
		log.Fatal("user not found", zap.String("email", *email), zap.Error(err))
	}

	var hashed model.User
	if err := hashed.SetPassword(*password); err != nil {
		log.Fatal("failed to hash password", zap.Error(err))
	}
	if err := users.UpdatePassword(ctx, user.ID, hashed.Password); err != nil {
		log.Fatal("failed to update password", zap.Error(err))
	}

	log.Info("password reset", zap.String("email", *email))
}

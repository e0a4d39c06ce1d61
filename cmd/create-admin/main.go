// Command create-admin creates a back-office user or resets its password.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"mandate-portal/config"
	"mandate-portal/models"
	"mandate-portal/services"

	"github.com/spf13/pflag"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	email := pflag.StringP("email", "e", "", "admin e-mail address (required)")
	password := pflag.StringP("password", "p", os.Getenv("ADMIN_PASSWORD"), "password, at least 8 characters (default $ADMIN_PASSWORD)")
	name := pflag.StringP("name", "n", "", "display name")
	pflag.Parse()

	if strings.TrimSpace(*email) == "" || len(*password) < 8 {
		pflag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	created, err := upsertAdmin(db, strings.TrimSpace(*email), *password, *name)
	if err != nil {
		log.Fatal(err)
	}
	if created {
		fmt.Printf("✅ admin %s created\n", *email)
	} else {
		fmt.Printf("🔑 password of admin %s updated\n", *email)
	}
}

func upsertAdmin(db *gorm.DB, email, password, name string) (bool, error) {
	hash, err := services.HashPassword(password)
	if err != nil {
		return false, err
	}

	var user models.AdminUser
	err = db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.AdminUser{Email: email, PasswordHash: hash, Name: name}
		if err := db.Create(&user).Error; err != nil {
			return false, fmt.Errorf("failed to create admin: %w", err)
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	updates := map[string]any{"password_hash": hash}
	if name != "" {
		updates["name"] = name
	}
	if err := db.Model(&user).Updates(updates).Error; err != nil {
		return false, fmt.Errorf("failed to update admin: %w", err)
	}
	return false, nil
}

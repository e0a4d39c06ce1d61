// Command create-partner registers a referral partner.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"mandate-portal/config"
	"mandate-portal/models"
	"mandate-portal/utils"

	"github.com/spf13/pflag"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	name := pflag.StringP("name", "n", "", "partner name (required)")
	trackingID := pflag.StringP("tracking-id", "t", "", "tracking id used in referral links (derived from the name if empty)")
	email := pflag.StringP("email", "e", "", "login e-mail for the partner portal")
	inactive := pflag.Bool("inactive", false, "create the partner deactivated")
	pflag.Parse()

	if strings.TrimSpace(*name) == "" {
		pflag.Usage()
		os.Exit(2)
	}
	tid := strings.TrimSpace(*trackingID)
	if tid == "" {
		tid = utils.SuggestTrackingID(*name)
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

	partner := models.Partner{Name: strings.TrimSpace(*name), TrackingID: tid, Active: true}
	if e := strings.TrimSpace(*email); e != "" {
		partner.Email = &e
	}
	if err := db.Create(&partner).Error; err != nil {
		log.Fatalf("failed to create partner: %v", err)
	}
	// Active has a database default of true, so false must be written explicitly.
	if *inactive {
		if err := db.Model(&partner).Update("active", false).Error; err != nil {
			log.Fatalf("failed to deactivate partner: %v", err)
		}
	}

	fmt.Printf("✅ partner %s created (id %s, tracking id %s)\n", partner.Name, partner.ID, partner.TrackingID)
	fmt.Printf("   link: %s\n", cfg.PublicBaseURL+"/formular?partner="+partner.TrackingID)
}

// models/partner.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Partner is a referral source identified by the tracking id in inbound links.
type Partner struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name       string    `json:"name" gorm:"not null"`
	TrackingID string    `json:"trackingId" gorm:"uniqueIndex;not null"`
	Email      *string   `json:"email" gorm:"uniqueIndex"`
	Active     bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Tokens []PartnerToken `json:"-" gorm:"foreignKey:PartnerID;constraint:OnDelete:CASCADE"`
}

func (p *Partner) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// PartnerToken is a single-use magic-link credential. Only the SHA-256
// fingerprint of the mailed token is stored.
type PartnerToken struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TokenHash string    `json:"-" gorm:"size:64;uniqueIndex;not null"`
	PartnerID string    `json:"partnerId" gorm:"type:varchar(36);index;not null"`
	Partner   *Partner  `json:"-" gorm:"foreignKey:PartnerID"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"index;not null"`
	Used      bool      `json:"used" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"createdAt"`
}

func (t *PartnerToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

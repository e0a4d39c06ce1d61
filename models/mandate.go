// models/mandate.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MandateStatus is the admin-driven lifecycle state of a mandate.
type MandateStatus string

const (
	MandateStatusNew        MandateStatus = "NEU"
	MandateStatusInProgress MandateStatus = "IN_BEARBEITUNG"
	MandateStatusCompleted  MandateStatus = "ABGESCHLOSSEN"
	MandateStatusRejected   MandateStatus = "ABGELEHNT"
)

// MandateStatuses lists every valid status in workflow order.
var MandateStatuses = []MandateStatus{
	MandateStatusNew,
	MandateStatusInProgress,
	MandateStatusCompleted,
	MandateStatusRejected,
}

// ParseMandateStatus accepts the stored German values and their English aliases.
func ParseMandateStatus(s string) (MandateStatus, bool) {
	switch s {
	case "NEU", "NEW":
		return MandateStatusNew, true
	case "IN_BEARBEITUNG", "IN_PROGRESS":
		return MandateStatusInProgress, true
	case "ABGESCHLOSSEN", "COMPLETED":
		return MandateStatusCompleted, true
	case "ABGELEHNT", "REJECTED":
		return MandateStatusRejected, true
	}
	return "", false
}

// Mandate is a client engagement created from the intake form.
type Mandate struct {
	ID string `json:"id" gorm:"primaryKey;type:varchar(36)"`

	// 👤 Identity
	Vorname      string    `json:"vorname" gorm:"not null"`
	Nachname     string    `json:"nachname" gorm:"not null"`
	Email        string    `json:"email" gorm:"index;not null"`
	Telefon      *string   `json:"telefon"`
	Adresse      string    `json:"adresse" gorm:"not null"`
	PLZ          string    `json:"plz" gorm:"column:plz;size:5;not null"`
	Wohnort      string    `json:"wohnort" gorm:"not null"`
	Geburtsdatum time.Time `json:"geburtsdatum" gorm:"not null"`

	// 📱 Social accounts (at least one)
	InstagramAccountDatum *time.Time `json:"instagramAccountDatum"`
	FacebookAccountDatum  *time.Time `json:"facebookAccountDatum"`

	// 🛡️ Legal-expense insurance
	Versicherer                    *string    `json:"versicherer"`
	Versicherungsnummer            *string    `json:"versicherungsnummer"`
	VersicherungsAbschlussdatum    *time.Time `json:"versicherungsAbschlussdatum"`
	VersicherungsnehmerAbweichend  bool       `json:"versicherungsnehmerAbweichend" gorm:"default:false"`
	Versicherungsnehmer            *string    `json:"versicherungsnehmer"`
	VersicherungsnehmerVerhaeltnis *string    `json:"versicherungsnehmerVerhaeltnis"`

	Status MandateStatus `json:"status" gorm:"type:varchar(20);not null;default:'NEU';index"`

	// 🔗 Referral
	PartnerID *string  `json:"partnerId" gorm:"type:varchar(36);index"`
	Partner   *Partner `json:"partner,omitempty" gorm:"foreignKey:PartnerID;constraint:OnDelete:RESTRICT"`
	Referrer  *string  `json:"referrer"`

	// ✍️ E-signature linkage
	ExternalDocumentID *string    `json:"externalDocumentId" gorm:"uniqueIndex"`
	ExternalSessionID  *string    `json:"externalSessionId"`
	SignedDocumentURL  *string    `json:"signedDocumentUrl"`
	SignedAt           *time.Time `json:"signedAt"`
	ArchiveKey         *string    `json:"archiveKey,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m *Mandate) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = MandateStatusNew
	}
	return nil
}

// FullName is used for document names and mail salutations.
func (m *Mandate) FullName() string {
	return m.Vorname + " " + m.Nachname
}

// AwaitingSignature is true while a document exists but no completion is recorded.
func (m *Mandate) AwaitingSignature() bool {
	return m.ExternalDocumentID != nil && *m.ExternalDocumentID != "" && m.SignedAt == nil
}

// services/validation.go
package services

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"mandate-portal/models"

	"github.com/go-playground/validator/v10"
)

var (
	plzPattern        = regexp.MustCompile(`^\d{5}$`)
	trackingIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	validate = newValidator()
)

// FieldError is one failed rule, keyed by the JSON field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is returned for any rejected payload.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// MandateRequest is the intake form payload. Dates arrive as strings.
type MandateRequest struct {
	Vorname      string `json:"vorname" validate:"required,min=2,max=50"`
	Nachname     string `json:"nachname" validate:"required,min=2,max=50"`
	Email        string `json:"email" validate:"required,email"`
	Telefon      string `json:"telefon" validate:"omitempty,max=50"`
	Adresse      string `json:"adresse" validate:"required,min=5,max=200"`
	PLZ          string `json:"plz" validate:"required,plz"`
	Wohnort      string `json:"wohnort" validate:"required,min=2,max=100"`
	Geburtsdatum string `json:"geburtsdatum" validate:"required,isodate"`

	InstagramAccountDatum string `json:"instagramAccountDatum" validate:"omitempty,isodate"`
	FacebookAccountDatum  string `json:"facebookAccountDatum" validate:"omitempty,isodate"`

	HatRechtschutz                 *bool  `json:"hatRechtschutz" validate:"required"`
	Versicherer                    string `json:"versicherer" validate:"omitempty,max=200"`
	Versicherungsnummer            string `json:"versicherungsnummer" validate:"omitempty,max=100"`
	VersicherungsAbschlussdatum    string `json:"versicherungsAbschlussdatum" validate:"omitempty,isodate"`
	VersicherungsnehmerAbweichend  bool   `json:"versicherungsnehmerAbweichend"`
	Versicherungsnehmer            string `json:"versicherungsnehmer" validate:"omitempty,max=200"`
	VersicherungsnehmerVerhaeltnis string `json:"versicherungsnehmerVerhaeltnis" validate:"omitempty,max=100"`

	// PartnerID carries the tracking id from the referral link.
	PartnerID string `json:"partnerId"`
	Referrer  string `json:"referrer"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

type PartnerRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=100"`
	TrackingID string `json:"trackingId" validate:"omitempty,max=64,trackingid"`
	Email      string `json:"email" validate:"omitempty,email"`
}

type PartnerUpdateRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=2,max=100"`
	TrackingID *string `json:"trackingId" validate:"omitempty,max=64,trackingid"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Active     *bool   `json:"active"`
}

type MagicLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
}

var fieldLabels = map[string]string{
	"vorname":                        "Vorname",
	"nachname":                       "Nachname",
	"email":                          "E-Mail",
	"telefon":                        "Telefon",
	"adresse":                        "Adresse",
	"plz":                            "PLZ",
	"wohnort":                        "Wohnort",
	"geburtsdatum":                   "Geburtsdatum",
	"instagramAccountDatum":          "Instagram-Account-Datum",
	"facebookAccountDatum":           "Facebook-Account-Datum",
	"hatRechtschutz":                 "Rechtschutzversicherung",
	"versicherer":                    "Versicherer",
	"versicherungsnummer":            "Versicherungsnummer",
	"versicherungsAbschlussdatum":    "Abschlussdatum",
	"versicherungsnehmer":            "Versicherungsnehmer",
	"versicherungsnehmerVerhaeltnis": "Verhältnis zum Versicherungsnehmer",
	"password":                       "Passwort",
	"currentPassword":                "Aktuelles Passwort",
	"newPassword":                    "Neues Passwort",
	"confirmPassword":                "Passwortbestätigung",
	"name":                           "Name",
	"trackingId":                     "Tracking-ID",
	"token":                          "Token",
	"status":                         "Status",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("plz", func(fl validator.FieldLevel) bool {
		return plzPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("trackingid", func(fl validator.FieldLevel) bool {
		return trackingIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate runs the struct rules on req and converts failures to ValidationErrors.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " ist erforderlich"
	case "min":
		return fmt.Sprintf("%s muss mindestens %s Zeichen haben", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s darf höchstens %s Zeichen haben", label, fe.Param())
	case "email":
		return "Ungültige E-Mail-Adresse"
	case "plz":
		return "PLZ muss aus 5 Ziffern bestehen"
	case "isodate":
		return "Ungültiges Datum"
	case "trackingid":
		return "Tracking-ID darf nur Buchstaben, Ziffern, - und _ enthalten"
	case "eqfield":
		return "Passwörter stimmen nicht überein"
	}
	return label + " ist ungültig"
}

// ParseDate accepts YYYY-MM-DD or RFC 3339 and returns a UTC time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t.UTC(), nil
}

// AgeOn returns the completed years between birth and now, with day precision.
func AgeOn(birth, now time.Time) int {
	birth = birth.UTC()
	now = now.UTC()
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// ValidateMandate checks req against the intake rules as of now and builds
// the mandate to persist. Status, partner and referrer are left to the caller.
func ValidateMandate(req *MandateRequest, now time.Time) (*models.Mandate, error) {
	var errs ValidationErrors
	if err := Validate(req); err != nil {
		verrs, ok := err.(ValidationErrors)
		if !ok {
			return nil, err
		}
		errs = append(errs, verrs...)
	}

	add := func(field, msg string) {
		for _, fe := range errs {
			if fe.Field == field {
				return
			}
		}
		errs = append(errs, FieldError{Field: field, Message: msg})
	}

	var birth time.Time
	if d, err := ParseDate(req.Geburtsdatum); err == nil {
		birth = d
		if AgeOn(birth, now) < 18 {
			add("geburtsdatum", "Du musst mindestens 18 Jahre alt sein")
		}
	}

	if strings.TrimSpace(req.InstagramAccountDatum) == "" && strings.TrimSpace(req.FacebookAccountDatum) == "" {
		add("instagramAccountDatum", "Mindestens ein Account-Datum (Instagram oder Facebook) muss angegeben werden")
	}

	if req.HatRechtschutz != nil && *req.HatRechtschutz && strings.TrimSpace(req.Versicherer) == "" {
		add("versicherer", "Versicherer ist erforderlich")
	}

	if req.VersicherungsnehmerAbweichend {
		if strings.TrimSpace(req.Versicherungsnehmer) == "" {
			add("versicherungsnehmer", "Versicherungsnehmer ist erforderlich")
		}
		if strings.TrimSpace(req.VersicherungsnehmerVerhaeltnis) == "" {
			add("versicherungsnehmerVerhaeltnis", "Verhältnis zum Versicherungsnehmer ist erforderlich")
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	m := &models.Mandate{
		Vorname:                       strings.TrimSpace(req.Vorname),
		Nachname:                      strings.TrimSpace(req.Nachname),
		Email:                         strings.TrimSpace(req.Email),
		Telefon:                       optionalString(req.Telefon),
		Adresse:                       strings.TrimSpace(req.Adresse),
		PLZ:                           req.PLZ,
		Wohnort:                       strings.TrimSpace(req.Wohnort),
		Geburtsdatum:                  birth,
		InstagramAccountDatum:         optionalDate(req.InstagramAccountDatum),
		FacebookAccountDatum:          optionalDate(req.FacebookAccountDatum),
		Versicherer:                   optionalString(req.Versicherer),
		Versicherungsnummer:           optionalString(req.Versicherungsnummer),
		VersicherungsAbschlussdatum:   optionalDate(req.VersicherungsAbschlussdatum),
		VersicherungsnehmerAbweichend: req.VersicherungsnehmerAbweichend,
	}
	if req.VersicherungsnehmerAbweichend {
		m.Versicherungsnehmer = optionalString(req.Versicherungsnehmer)
		m.VersicherungsnehmerVerhaeltnis = optionalString(req.VersicherungsnehmerVerhaeltnis)
	}
	return m, nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalDate(s string) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return nil
	}
	return &t
}

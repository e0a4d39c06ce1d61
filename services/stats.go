// services/stats.go
package services

import (
	"math"
	"strconv"

	"mandate-portal/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

// StatusCount is one row of the per-status aggregate; Signed counts rows
// with a recorded signature.
type StatusCount struct {
	Status models.MandateStatus
	Count  int64
	Signed int64
}

// Stats is the derived lead summary shown to partners and admins.
type Stats struct {
	TotalLeads                   int64   `json:"totalLeads"`
	Neu                          int64   `json:"neu"`
	InBearbeitung                int64   `json:"inBearbeitung"`
	Abgeschlossen                int64   `json:"abgeschlossen"`
	Abgelehnt                    int64   `json:"abgelehnt"`
	VollmachtSigniert            int64   `json:"vollmachtSigniert"`
	ConversionRate               string  `json:"conversionRate"`
	GeschaetzterErtrag           float64 `json:"geschaetzterErtrag"`
	GeschaetzterErtragFormatiert string  `json:"geschaetzterErtragFormatiert"`
}

var germanPrinter = message.NewPrinter(language.German)

// ComputeStats folds status counts into Stats. Conversion is completed over
// total, in percent with one decimal, and "0.0" when there are no leads.
func ComputeStats(counts []StatusCount, unitAmount float64) Stats {
	var s Stats
	for _, c := range counts {
		s.TotalLeads += c.Count
		s.VollmachtSigniert += c.Signed
		switch c.Status {
		case models.MandateStatusNew:
			s.Neu += c.Count
		case models.MandateStatusInProgress:
			s.InBearbeitung += c.Count
		case models.MandateStatusCompleted:
			s.Abgeschlossen += c.Count
		case models.MandateStatusRejected:
			s.Abgelehnt += c.Count
		}
	}

	s.ConversionRate = ConversionRate(s.Abgeschlossen, s.TotalLeads)
	s.GeschaetzterErtrag = unitAmount * float64(s.TotalLeads)
	s.GeschaetzterErtragFormatiert = FormatEuro(s.GeschaetzterErtrag)
	return s
}

// ConversionRate returns round(completed/total*100, 1) formatted with one decimal.
func ConversionRate(completed, total int64) string {
	if total <= 0 {
		return "0.0"
	}
	rate := math.Round(float64(completed)/float64(total)*1000) / 10
	return strconv.FormatFloat(rate, 'f', 1, 64)
}

// FormatEuro renders an amount the German way, e.g. "1.234,50 €".
func FormatEuro(amount float64) string {
	return germanPrinter.Sprintf("%.2f €", amount)
}

// countByStatus aggregates mandates, optionally narrowed by the scope.
func countByStatus(db *gorm.DB, scope func(*gorm.DB) *gorm.DB) ([]StatusCount, error) {
	var rows []StatusCount
	q := db.Model(&models.Mandate{}).
		Select("status, COUNT(*) AS count, COUNT(signed_at) AS signed").
		Group("status")
	if scope != nil {
		q = scope(q)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

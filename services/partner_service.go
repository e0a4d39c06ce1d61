// services/partner_service.go
package services

import (
	"errors"
	"strings"

	"mandate-portal/models"
	"mandate-portal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PartnerService covers partner administration and the statistics views.
type PartnerService struct {
	DB             *gorm.DB
	PublicBaseURL  string
	LeadUnitAmount float64
	Logger         *zap.Logger
}

// TrackingURL is the intake form link a partner hands out.
func TrackingURL(baseURL, trackingID string) string {
	return baseURL + "/formular?partner=" + trackingID
}

type partnerStatusCount struct {
	PartnerID *string
	Status    models.MandateStatus
	Count     int64
	Signed    int64
}

// countsByPartner groups mandate counts per partner id; mandates without a
// partner are keyed by "".
func (s *PartnerService) countsByPartner(db *gorm.DB) (map[string][]StatusCount, error) {
	var rows []partnerStatusCount
	if err := db.Model(&models.Mandate{}).
		Select("partner_id, status, COUNT(*) AS count, COUNT(signed_at) AS signed").
		Group("partner_id, status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[string][]StatusCount)
	for _, r := range rows {
		key := ""
		if r.PartnerID != nil {
			key = *r.PartnerID
		}
		out[key] = append(out[key], StatusCount{Status: r.Status, Count: r.Count, Signed: r.Signed})
	}
	return out, nil
}

// ListPartners returns every partner, newest first, with its lead count.
func (s *PartnerService) ListPartners(c *fiber.Ctx) error {
	db := s.DB.WithContext(c.UserContext())

	var partners []models.Partner
	if err := db.Order("created_at DESC").Find(&partners).Error; err != nil {
		s.Logger.Error("❌ failed to list partners", zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, msgInternal)
	}

	counts, err := s.countsByPartner(db)
	if err != nil {
		s.Logger.Error("❌ failed to count partner mandates", zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, msgInternal)
	}

	out := make([]fiber.Map, 0, len(partners))
	for i := range partners {
		p := &partners[i]
		var total int64
		for _, sc := range counts[p.ID] {
			total += sc.Count
		}
		out = append(out, fiber.Map{
			"id":           p.ID,
			"name":         p.Name,
			"trackingId":   p.TrackingID,
			"email":        p.Email,
			"active":       p.Active,
			"createdAt":    p.CreatedAt,
			"updatedAt":    p.UpdatedAt,
			"mandateCount": total,
			"trackingUrl":  TrackingURL(s.PublicBaseURL, p.TrackingID),
		})
	}
	return c.JSON(fiber.Map{"partners": out})
}

// CreatePartner registers a referral partner. A missing tracking id is derived from the name.
func (s *PartnerService) CreatePartner(c *fiber.Ctx) error {
	var req PartnerRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, msgInvalidData)
	}
	req.Name = strings.TrimSpace(req.Name)
	req.TrackingID = strings.TrimSpace(req.TrackingID)
	req.Email = strings.TrimSpace(req.Email)
	if err := Validate(&req); err != nil {
		return validationError(c, err)
	}

	if req.TrackingID == "" {
		req.TrackingID = utils.SuggestTrackingID(req.Name)
		if req.TrackingID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   msgInvalidData,
				"details": ValidationErrors{{Field: "trackingId", Message: "Tracking-ID ist erforderlich"}},
			})
		}
	}

	db := s.DB.WithContext(c.UserContext())
	if taken, err := s.exists(db, "tracking_id = ?", req.TrackingID, ""); err != nil {
		return s.internal(c, err)
	} else if taken {
		return jsonError(c, fiber.StatusBadRequest, "Tracking-ID existiert bereits")
	}
	if req.Email != "" {
		if taken, err := s.exists(db, "email = ?", req.Email, ""); err != nil {
			return s.internal(c, err)
		} else if taken {
			return jsonError(c, fiber.StatusBadRequest, "E-Mail wird bereits von einem Partner verwendet")
		}
	}

	partner := models.Partner{
		Name:       req.Name,
		TrackingID: req.TrackingID,
		Email:      optionalString(req.Email),
		Active:     true,
	}
	if err := db.Create(&partner).Error; err != nil {
		return s.internal(c, err)
	}

	s.Logger.Info("🤝 partner created", zap.String("partner_id", partner.ID), zap.String("tracking_id", partner.TrackingID))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "partner": partner})
}

// UpdatePartner applies a partial update. An empty email removes it.
func (s *PartnerService) UpdatePartner(c *fiber.Ctx) error {
	var req PartnerUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, msgInvalidData)
	}
	trimPtr(req.Name)
	trimPtr(req.TrackingID)
	trimPtr(req.Email)
	clearEmail := req.Email != nil && *req.Email == ""
	if clearEmail {
		req.Email = nil
	}
	if err := Validate(&req); err != nil {
		return validationError(c, err)
	}

	db := s.DB.WithContext(c.UserContext())
	var partner models.Partner
	if err := db.First(&partner, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, msgPartnerNotFound)
		}
		return s.internal(c, err)
	}

	updates := map[string]any{}
	if req.Name != nil && *req.Name != "" {
		updates["name"] = *req.Name
	}
	if req.TrackingID != nil && *req.TrackingID != "" && *req.TrackingID != partner.TrackingID {
		taken, err := s.exists(db, "tracking_id = ?", *req.TrackingID, partner.ID)
		if err != nil {
			return s.internal(c, err)
		}
		if taken {
			return jsonError(c, fiber.StatusBadRequest, "Tracking-ID existiert bereits")
		}
		updates["tracking_id"] = *req.TrackingID
	}
	switch {
	case clearEmail:
		updates["email"] = nil
	case req.Email != nil:
		taken, err := s.exists(db, "email = ?", *req.Email, partner.ID)
		if err != nil {
			return s.internal(c, err)
		}
		if taken {
			return jsonError(c, fiber.StatusBadRequest, "E-Mail wird bereits von einem Partner verwendet")
		}
		updates["email"] = *req.Email
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if len(updates) > 0 {
		if err := db.Model(&partner).Updates(updates).Error; err != nil {
			return s.internal(c, err)
		}
	}
	if err := db.First(&partner, "id = ?", partner.ID).Error; err != nil {
		return s.internal(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "partner": partner})
}

// DeletePartner removes a partner without mandates together with its login tokens.
func (s *PartnerService) DeletePartner(c *fiber.Ctx) error {
	id := c.Params("id")
	err := s.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var partner models.Partner
		if err := tx.First(&partner, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPartnerNotFound
			}
			return err
		}

		var mandates int64
		if err := tx.Model(&models.Mandate{}).Where("partner_id = ?", id).Count(&mandates).Error; err != nil {
			return err
		}
		if mandates > 0 {
			return ErrPartnerInUse
		}

		if err := tx.Where("partner_id = ?", id).Delete(&models.PartnerToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(&partner).Error
	})

	switch {
	case errors.Is(err, ErrPartnerNotFound):
		return jsonError(c, fiber.StatusNotFound, msgPartnerNotFound)
	case errors.Is(err, ErrPartnerInUse):
		return jsonError(c, fiber.StatusConflict, "Partner hat noch Mandate und kann nicht gelöscht werden. Bitte stattdessen deaktivieren.")
	case err != nil:
		return s.internal(c, err)
	}

	s.Logger.Info("🗑️ partner deleted", zap.String("partner_id", id))
	return c.JSON(fiber.Map{"success": true, "message": "Partner gelöscht"})
}

// AdminPartnerStats returns per-partner statistics and the overall totals.
func (s *PartnerService) AdminPartnerStats(c *fiber.Ctx) error {
	db := s.DB.WithContext(c.UserContext())

	var partners []models.Partner
	if err := db.Order("created_at DESC").Find(&partners).Error; err != nil {
		return s.internal(c, err)
	}
	counts, err := s.countsByPartner(db)
	if err != nil {
		return s.internal(c, err)
	}

	out := make([]fiber.Map, 0, len(partners))
	var all []StatusCount
	for _, rows := range counts {
		all = append(all, rows...)
	}
	for i := range partners {
		p := &partners[i]
		stats := ComputeStats(counts[p.ID], s.LeadUnitAmount)
		out = append(out, fiber.Map{
			"id":                           p.ID,
			"name":                         p.Name,
			"trackingId":                   p.TrackingID,
			"email":                        p.Email,
			"active":                       p.Active,
			"createdAt":                    p.CreatedAt,
			"totalLeads":                   stats.TotalLeads,
			"neu":                          stats.Neu,
			"inBearbeitung":                stats.InBearbeitung,
			"abgeschlossen":                stats.Abgeschlossen,
			"abgelehnt":                    stats.Abgelehnt,
			"vollmachtSigniert":            stats.VollmachtSigniert,
			"conversionRate":               stats.ConversionRate,
			"geschaetzterErtrag":           stats.GeschaetzterErtrag,
			"geschaetzterErtragFormatiert": stats.GeschaetzterErtragFormatiert,
			"trackingUrl":                  TrackingURL(s.PublicBaseURL, p.TrackingID),
		})
	}

	return c.JSON(fiber.Map{
		"partners": out,
		"total":    ComputeStats(all, s.LeadUnitAmount),
	})
}

// PartnerStats serves the dashboard of the partner attached by the session middleware.
func (s *PartnerService) PartnerStats(c *fiber.Ctx) error {
	partner, ok := c.Locals("partner").(*models.Partner)
	if !ok || partner == nil {
		return jsonError(c, fiber.StatusUnauthorized, msgUnauthorized)
	}

	counts, err := countByStatus(s.DB.WithContext(c.UserContext()), func(q *gorm.DB) *gorm.DB {
		return q.Where("partner_id = ?", partner.ID)
	})
	if err != nil {
		return s.internal(c, err)
	}
	stats := ComputeStats(counts, s.LeadUnitAmount)

	return c.JSON(fiber.Map{"stats": fiber.Map{
		"partner":                      partnerView(partner),
		"totalLeads":                   stats.TotalLeads,
		"neu":                          stats.Neu,
		"inBearbeitung":                stats.InBearbeitung,
		"abgeschlossen":                stats.Abgeschlossen,
		"abgelehnt":                    stats.Abgelehnt,
		"vollmachtSigniert":            stats.VollmachtSigniert,
		"conversionRate":               stats.ConversionRate,
		"geschaetzterErtrag":           stats.GeschaetzterErtrag,
		"geschaetzterErtragFormatiert": stats.GeschaetzterErtragFormatiert,
		"trackingUrl":                  TrackingURL(s.PublicBaseURL, partner.TrackingID),
	}})
}

func (s *PartnerService) exists(db *gorm.DB, cond string, value any, exceptID string) (bool, error) {
	q := db.Model(&models.Partner{}).Where(cond, value)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PartnerService) internal(c *fiber.Ctx, err error) error {
	s.Logger.Error("❌ partner request failed", zap.String("path", c.Path()), zap.Error(err))
	return jsonError(c, fiber.StatusInternalServerError, msgInternal)
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

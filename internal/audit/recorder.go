// Package audit persists linking-attempt history rows. It implements
// session.AuditRecorder; failures are logged and never propagate into the
// session lifecycle.
package audit

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/truthmd/truthlink/internal/domain"
	"github.com/truthmd/truthlink/internal/session"
	"github.com/truthmd/truthlink/pkg/idgen"
)

type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// SessionCreated writes the initial attempt row.
func (r *Recorder) SessionCreated(rec session.Record) {
	row := &domain.LinkAttempt{
		ID:        idgen.NextID(),
		SessionID: rec.ID,
		Method:    string(rec.Method),
		Phone:     maskPhone(rec.PhoneNumber),
		Status:    string(rec.Status),
	}
	if err := r.db.Create(row).Error; err != nil {
		zap.L().Warn("audit: create link attempt failed",
			zap.String("session_id", rec.ID), zap.Error(err))
	}
}

// SessionClosed stamps the terminal outcome onto the attempt row.
func (r *Recorder) SessionClosed(rec session.Record, message string) {
	err := r.db.Model(&domain.LinkAttempt{}).
		Where("session_id = ?", rec.ID).
		Updates(map[string]interface{}{
			"status":  string(rec.Status),
			"message": message,
		}).Error
	if err != nil {
		zap.L().Warn("audit: close link attempt failed",
			zap.String("session_id", rec.ID), zap.Error(err))
	}
}

// List returns the most recent attempts, newest first.
func (r *Recorder) List(limit int) ([]domain.LinkAttempt, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []domain.LinkAttempt
	err := r.db.Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// Prune drops attempt rows older than the retention window.
func (r *Recorder) Prune(retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	res := r.db.Where("created_at < ?", cutoff).Delete(&domain.LinkAttempt{})
	if res.Error != nil {
		zap.L().Warn("audit: prune failed", zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		zap.L().Info("audit: pruned old link attempts", zap.Int64("rows", res.RowsAffected))
	}
}

// maskPhone keeps only the trailing digits so the audit trail never stores
// a full phone number.
func maskPhone(p string) string {
	if p == "" {
		return ""
	}
	if len(p) <= 4 {
		return strings.Repeat("*", len(p))
	}
	return strings.Repeat("*", len(p)-4) + p[len(p)-4:]
}

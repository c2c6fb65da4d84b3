package db

import (
	"context"
	"time"

	"github.com/jinzhu/gorm"

	"wabaconnect/models"
	"wabaconnect/whatsapp"
)

// TenantStore is the gorm-backed tenant document store. All WhatsApp writes are
// column-scoped; the rest of the row is never touched.
type TenantStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTenantStore(db *gorm.DB) *TenantStore {
	return &TenantStore{db: db, now: time.Now}
}

func (s *TenantStore) Create(ctx context.Context, tenant *models.TenantAccount) error {
	if tenant.Status == "" {
		tenant.Status = models.TENANT_STATUS_ACTIVE
	}
	return s.db.Create(tenant).Error
}

func (s *TenantStore) Get(ctx context.Context, tenantID int64) (models.TenantAccount, error) {
	var tenant models.TenantAccount
	err := s.db.Where("id = ?", tenantID).First(&tenant).Error
	if gorm.IsRecordNotFoundError(err) {
		return tenant, whatsapp.ErrTenantNotFound
	}
	return tenant, err
}

// UpdateWhatsApp writes the patch, bumps whatsapp_version and stamps whatsapp_updated_at.
func (s *TenantStore) UpdateWhatsApp(ctx context.Context, tenantID int64, patch models.WhatsAppPatch) (models.TenantAccount, error) {
	cols := patch.Columns()
	cols["whatsapp_updated_at"] = s.now().UTC()
	cols["whatsapp_version"] = gorm.Expr("whatsapp_version + 1")

	res := s.db.Model(&models.TenantAccount{}).Where("id = ?", tenantID).Updates(cols)
	if res.Error != nil {
		return models.TenantAccount{}, res.Error
	}
	if res.RowsAffected == 0 {
		return models.TenantAccount{}, whatsapp.ErrTenantNotFound
	}
	return s.Get(ctx, tenantID)
}

// ApplyRemoteWhatsApp writes the patch only when observedAt is after the last write,
// as a single conditional UPDATE.
func (s *TenantStore) ApplyRemoteWhatsApp(ctx context.Context, tenantID int64, patch models.WhatsAppPatch, observedAt time.Time) (bool, error) {
	observedAt = observedAt.UTC()
	cols := patch.Columns()
	cols["whatsapp_updated_at"] = observedAt
	cols["whatsapp_version"] = gorm.Expr("whatsapp_version + 1")

	res := s.db.Model(&models.TenantAccount{}).
		Where("id = ?", tenantID).
		Where("whatsapp_updated_at IS NULL OR whatsapp_updated_at < ?", observedAt).
		Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	if _, err := s.Get(ctx, tenantID); err != nil {
		return false, err
	}
	return false, nil
}

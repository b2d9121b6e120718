package repository

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/buildco/backend/internal/models"
)

// MaintenanceRepository provides persistence access for maintenance requests
// and their history and image children.
type MaintenanceRepository struct {
	db *gorm.DB
}

// NewMaintenanceRepository constructs a repository using the provided gorm DB.
// The DB should be opened with TranslateError so unique violations surface as
// gorm.ErrDuplicatedKey.
func NewMaintenanceRepository(db *gorm.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateReference
	}
	return errors.WithStack(err)
}

// CreateRequest persists a new request.
func (r *MaintenanceRepository) CreateRequest(ctx context.Context, req *models.MaintenanceRequest) error {
	return translate(r.db.WithContext(ctx).Omit("History", "Images").Create(req).Error)
}

// FindByID returns the request without children.
func (r *MaintenanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error) {
	var req models.MaintenanceRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// FindByReference returns the request with its status history in chronological order.
func (r *MaintenanceRepository) FindByReference(ctx context.Context, ref string) (*models.MaintenanceRequest, error) {
	var req models.MaintenanceRequest
	err := r.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		First(&req, "reference_number = ?", ref).Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// List returns requests ordered by creation time descending. A non-positive
// limit returns everything.
func (r *MaintenanceRepository) List(ctx context.Context, limit int) ([]models.MaintenanceRequest, error) {
	q := r.db.WithContext(ctx).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var reqs []models.MaintenanceRequest
	if err := q.Find(&reqs).Error; err != nil {
		return nil, translate(err)
	}
	return reqs, nil
}

// Mutation changes the locked current copy of a request. It returns the columns
// to write and, for a status change, the history entry to append.
type Mutation func(req *models.MaintenanceRequest) (columns map[string]any, entry *models.StatusHistoryEntry, err error)

// PatchRequest reads the request under a row lock, applies mutate and writes
// only the returned columns, all in one transaction. The history entry, if
// any, is appended in the same transaction.
func (r *MaintenanceRepository) PatchRequest(ctx context.Context, id uuid.UUID, mutate Mutation) (*models.MaintenanceRequest, error) {
	var updated models.MaintenanceRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.MaintenanceRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, "id = ?", id).Error; err != nil {
			return err
		}
		columns, entry, err := mutate(&current)
		if err != nil {
			return err
		}
		if len(columns) > 0 {
			if err := tx.Model(&models.MaintenanceRequest{}).Where("id = ?", id).Updates(columns).Error; err != nil {
				return err
			}
		}
		if entry != nil {
			entry.RequestID = id
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
		}
		return tx.First(&updated, "id = ?", id).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &updated, nil
}

// DeleteRequest removes a request and its children.
func (r *MaintenanceRepository) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("request_id = ?", id).Delete(&models.StatusHistoryEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("request_id = ?", id).Delete(&models.MaintenanceImage{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.MaintenanceRequest{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}))
}

// History returns the status history of a request, oldest first.
func (r *MaintenanceRepository) History(ctx context.Context, requestID uuid.UUID) ([]models.StatusHistoryEntry, error) {
	var entries []models.StatusHistoryEntry
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).Order("created_at asc").Find(&entries).Error
	return entries, translate(err)
}

// CreateImage persists an image row.
func (r *MaintenanceRepository) CreateImage(ctx context.Context, img *models.MaintenanceImage) error {
	return translate(r.db.WithContext(ctx).Create(img).Error)
}

// Images returns the images attached to a request, oldest first.
func (r *MaintenanceRepository) Images(ctx context.Context, requestID uuid.UUID) ([]models.MaintenanceImage, error) {
	var imgs []models.MaintenanceImage
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).Order("created_at asc").Find(&imgs).Error
	return imgs, translate(err)
}

// CountImages returns how many images a request already has.
func (r *MaintenanceRepository) CountImages(ctx context.Context, requestID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.MaintenanceImage{}).Where("request_id = ?", requestID).Count(&n).Error
	return n, translate(err)
}

// FindImage returns one image by id.
func (r *MaintenanceRepository) FindImage(ctx context.Context, id uuid.UUID) (*models.MaintenanceImage, error) {
	var img models.MaintenanceImage
	if err := r.db.WithContext(ctx).First(&img, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &img, nil
}

// DeleteImage removes one image row.
func (r *MaintenanceRepository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.MaintenanceImage{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

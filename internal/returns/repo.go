package returns

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pratikdungano/vastrahub-backend/pkg/db/models"
	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
	"github.com/pratikdungano/vastrahub-backend/pkg/pagination"
)

// ErrStatusChanged reports that a status-guarded update matched no row: the
// request either moved to another status since it was read or does not exist.
var ErrStatusChanged = errors.New("return request status changed")

// ListFilters narrows the admin return queue.
type ListFilters struct {
	Status *enums.ReturnStatus
}

// ReturnList wraps a page of return requests plus the next cursor.
type ReturnList struct {
	Returns    []models.ReturnRequest `json:"returns"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

// Repository persists return requests and their append-only event timeline.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error)
	FindByID(ctx context.Context, requestID uuid.UUID) (*models.ReturnRequest, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.ReturnRequest, error)
	UpdateStatus(ctx context.Context, requestID uuid.UUID, from enums.ReturnStatus, updates map[string]any) error
	AppendEvent(ctx context.Context, event *models.ReturnEvent) error
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*ReturnList, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a return request repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error) {
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

func (r *repository) FindByID(ctx context.Context, requestID uuid.UUID) (*models.ReturnRequest, error) {
	var request models.ReturnRequest
	err := r.db.WithContext(ctx).
		Preload("Events", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", requestID).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.ReturnRequest, error) {
	var request models.ReturnRequest
	err := r.db.WithContext(ctx).
		Preload("Events", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("order_id = ?", orderID).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// UpdateStatus writes the new status only while the row still holds the
// status the caller read. A zero-row update means another transaction won the
// transition; callers treat ErrStatusChanged as a conflict and retry from a
// fresh read.
func (r *repository) UpdateStatus(ctx context.Context, requestID uuid.UUID, from enums.ReturnStatus, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ?", requestID, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

// AppendEvent inserts a timeline entry. Events are never updated or deleted.
func (r *repository) AppendEvent(ctx context.Context, event *models.ReturnEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) (*ReturnList, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.ReturnRequest{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(requested_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.ReturnRequest
	if err := query.Order("requested_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	list := &ReturnList{}
	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: next.RequestedAt, ID: next.ID})
	}
	list.Returns = rows
	return list, nil
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
	"github.com/pratikdungano/vastrahub-backend/pkg/types"
)

// ReturnRequest is the single return workflow attached to a delivered order.
// OrderID is unique: one return per order.
type ReturnRequest struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Type        enums.ReturnType   `gorm:"column:type;type:return_type;not null"`
	Status      enums.ReturnStatus `gorm:"column:status;type:return_status;not null;default:'requested'"`
	Reason      string             `gorm:"column:reason;not null"`
	Photos      types.StringList   `gorm:"column:photos;type:jsonb"`
	RefundRoute *types.RefundRoute `gorm:"column:refund_route;type:jsonb"`
	RefundedAt  *time.Time         `gorm:"column:refunded_at"`
	Events      []ReturnEvent      `gorm:"foreignKey:ReturnRequestID;constraint:OnDelete:CASCADE"`
	RequestedAt time.Time          `gorm:"column:requested_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// ReturnEvent is one append-only timeline entry on a return request.
// Rows are never updated or deleted.
type ReturnEvent struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReturnRequestID uuid.UUID           `gorm:"column:return_request_id;type:uuid;not null;index"`
	FromStatus      *enums.ReturnStatus `gorm:"column:from_status;type:return_status"`
	ToStatus        enums.ReturnStatus  `gorm:"column:to_status;type:return_status;not null"`
	Actor           enums.UserRole      `gorm:"column:actor;type:user_role;not null"`
	ActorID         uuid.UUID           `gorm:"column:actor_id;type:uuid;not null"`
	Note            *string             `gorm:"column:note"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
}

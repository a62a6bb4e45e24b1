package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pratikdungano/vastrahub-backend/pkg/logger"
)

const defaultPaymentTTL = 30 * time.Minute

// txRunner runs a function inside a database transaction. Jobs share it so
// the cron worker can hand every job the same runner.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type abandonedOrderExpirer interface {
	ExpireAbandoned(ctx context.Context, cutoff time.Time) (int, error)
}

// PaymentTTLJobParams configure the abandoned payment sweep.
type PaymentTTLJobParams struct {
	Logger *logger.Logger
	Orders abandonedOrderExpirer
	TTL    time.Duration
}

// NewPaymentTTLJob builds the cron job that cancels gateway orders whose
// payment never arrived. Stock was never taken for them, so expiry is a
// plain cancellation plus an event.
func NewPaymentTTLJob(params PaymentTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPaymentTTL
	}
	return &paymentTTLJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

type paymentTTLJob struct {
	logg   *logger.Logger
	orders abandonedOrderExpirer
	ttl    time.Duration
	now    func() time.Time
}

func (j *paymentTTLJob) Name() string { return "payment-ttl" }

func (j *paymentTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.orders.ExpireAbandoned(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("payment ttl sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"ttl":            j.ttl.String(),
		"orders_expired": expired,
	})
	j.logg.Info(logCtx, "payment ttl sweep complete")
	return nil
}

package service

import (
	"context"

	"github.com/gigpay/escrowhub/gateway"
	"github.com/uptrace/bun"
	"github.com/ziflex/lecho/v3"
)

// Notifier is the fire-and-forget notification sink. A failed or missing
// notifier never affects a financial state transition.
type Notifier interface {
	Publish(ctx context.Context, userId int64, eventType string, payload interface{}) error
}

type EscrowhubService struct {
	Config   *Config
	DB       *bun.DB
	Gateway  gateway.Client
	Logger   *lecho.Logger
	Notifier Notifier
}

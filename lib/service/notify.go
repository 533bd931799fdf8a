package service

import "context"

// notify publishes a fire-and-forget user notification. Publish failures
// are logged and swallowed; they must never roll back or fail a financial
// state transition.
func (svc *EscrowhubService) notify(ctx context.Context, userId int64, eventType string, payload interface{}) {
	if svc.Notifier == nil {
		return
	}
	if err := svc.Notifier.Publish(ctx, userId, eventType, payload); err != nil {
		svc.Logger.Errorf("Failed to publish notification type:%s user_id:%v error: %v", eventType, userId, err)
	}
}

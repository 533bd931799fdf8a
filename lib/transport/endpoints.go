package transport

import (
	"github.com/gigpay/escrowhub/controllers"
	"github.com/gigpay/escrowhub/lib/service"
	"github.com/labstack/echo/v4"
)

func RegisterEndpoints(svc *service.EscrowhubService, e *echo.Echo, secured *echo.Group, securedWithStrictRateLimit *echo.Group, adminMw echo.MiddlewareFunc, logMw echo.MiddlewareFunc) {
	escrowCtrl := controllers.NewEscrowController(svc)
	milestoneCtrl := controllers.NewMilestoneController(svc)
	payoutCtrl := controllers.NewPayoutController(svc)

	secured.POST("/v2/escrows", escrowCtrl.CreateEscrow)
	secured.GET("/v2/escrows/:id", escrowCtrl.GetEscrow)
	securedWithStrictRateLimit.POST("/v2/escrows/:id/fund", escrowCtrl.FundEscrow)
	securedWithStrictRateLimit.POST("/v2/escrows/:id/refund", escrowCtrl.RefundEscrow)
	secured.POST("/v2/escrows/:id/dispute", escrowCtrl.DisputeEscrow)

	secured.POST("/v2/milestones/:id/submit", milestoneCtrl.SubmitMilestone)
	securedWithStrictRateLimit.POST("/v2/milestones/:id/approve", milestoneCtrl.ApproveMilestone)
	secured.POST("/v2/milestones/:id/reject", milestoneCtrl.RejectMilestone)

	secured.GET("/v2/balance", controllers.NewBalanceController(svc).Balance)
	secured.GET("/v2/ledger", controllers.NewLedgerController(svc).GetLedger)

	securedWithStrictRateLimit.POST("/v2/payouts", payoutCtrl.RequestPayout)
	secured.GET("/v2/payouts", payoutCtrl.GetPayouts)
	// approval endpoints are for platform operators only
	e.POST("/v2/admin/payouts/:id/approve", payoutCtrl.ApprovePayout, adminMw, logMw)
	e.POST("/v2/admin/payouts/:id/reject", payoutCtrl.RejectPayout, adminMw, logMw)
	e.POST("/v2/admin/wallets/enable-payouts", payoutCtrl.EnablePayouts, adminMw, logMw)

	// gateway webhook authenticates via the shared admin token as well
	e.POST("/v2/gateway/webhook", controllers.NewWebhookController(svc).HandleGatewayEvent, adminMw, logMw)
}

package controllers

import (
	"net/http"

	"github.com/gigpay/escrowhub/lib/service"
	"github.com/labstack/echo/v4"
)

// BalanceController : Balance controller struct
type BalanceController struct {
	svc *service.EscrowhubService
}

func NewBalanceController(svc *service.EscrowhubService) *BalanceController {
	return &BalanceController{svc: svc}
}

func (controller *BalanceController) Balance(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	balance, err := controller.svc.WalletBalance(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Errorf("Failed to load balance user_id:%v error: %v", userID, err)
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, balance)
}

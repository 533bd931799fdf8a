package controllers

import (
	"net/http"
	"strconv"

	"github.com/gigpay/escrowhub/lib/responses"
	"github.com/gigpay/escrowhub/lib/service"
	"github.com/labstack/echo/v4"
)

// PayoutController : Payout controller struct
type PayoutController struct {
	svc *service.EscrowhubService
}

func NewPayoutController(svc *service.EscrowhubService) *PayoutController {
	return &PayoutController{svc: svc}
}

type RequestPayoutRequestBody struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Notes  string `json:"notes"`
}

type RejectPayoutRequestBody struct {
	Reason string `json:"reason" validate:"required"`
}

type EnablePayoutsRequestBody struct {
	UserID            int64  `json:"user_id" validate:"required"`
	ExternalAccountID string `json:"external_account_id" validate:"required"`
}

func (controller *PayoutController) RequestPayout(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	reqBody := RequestPayoutRequestBody{}
	if err := c.Bind(&reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	payout, err := controller.svc.RequestPayout(c.Request().Context(), userID, reqBody.Amount, reqBody.Notes)
	if err != nil {
		c.Logger().Errorf("Failed to request payout user_id:%v amount:%v error: %v", userID, reqBody.Amount, err)
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, payout)
}

func (controller *PayoutController) GetPayouts(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	payouts, err := controller.svc.PayoutsFor(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Errorf("Failed to load payouts user_id:%v error: %v", userID, err)
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, payouts)
}

// ApprovePayout is an admin operation guarded by the admin token
// middleware; the approver id comes from the request context when an
// operator token carries one, otherwise zero.
func (controller *PayoutController) ApprovePayout(c echo.Context) error {
	payoutID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	approverID, _ := c.Get("UserID").(int64)

	payout, err := controller.svc.ApprovePayout(c.Request().Context(), payoutID, approverID)
	if err != nil {
		c.Logger().Errorf("Failed to approve payout payout_id:%v error: %v", payoutID, err)
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, payout)
}

func (controller *PayoutController) RejectPayout(c echo.Context) error {
	payoutID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	approverID, _ := c.Get("UserID").(int64)
	reqBody := RejectPayoutRequestBody{}
	if err := c.Bind(&reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	payout, err := controller.svc.RejectPayout(c.Request().Context(), payoutID, approverID, reqBody.Reason)
	if err != nil {
		c.Logger().Errorf("Failed to reject payout payout_id:%v error: %v", payoutID, err)
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, payout)
}

// EnablePayouts records a completed external bank account verification.
func (controller *PayoutController) EnablePayouts(c echo.Context) error {
	reqBody := EnablePayoutsRequestBody{}
	if err := c.Bind(&reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	wallet, err := controller.svc.EnablePayouts(c.Request().Context(), reqBody.UserID, reqBody.ExternalAccountID)
	if err != nil {
		c.Logger().Errorf("Failed to enable payouts user_id:%v error: %v", reqBody.UserID, err)
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, wallet)
}

package controllers

import (
	"errors"
	"net/http"

	"github.com/gigpay/escrowhub/lib/responses"
	"github.com/gigpay/escrowhub/lib/service"
	"github.com/labstack/echo/v4"
)

// WebhookController handles the payment gateway's asynchronous callbacks.
// Delivery is at-least-once: handlers must be idempotent on the transfer
// reference, and an unknown reference is answered with 200 so the gateway
// stops redelivering.
type WebhookController struct {
	svc *service.EscrowhubService
}

func NewWebhookController(svc *service.EscrowhubService) *WebhookController {
	return &WebhookController{svc: svc}
}

type GatewayEventRequestBody struct {
	Type        string `json:"type" validate:"required"`
	TransferRef string `json:"transfer_ref"`
	HoldRef     string `json:"hold_ref"`
	Status      string `json:"status"`
}

func (controller *WebhookController) HandleGatewayEvent(c echo.Context) error {
	reqBody := GatewayEventRequestBody{}
	if err := c.Bind(&reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	switch reqBody.Type {
	case "transfer.completed":
		payout, err := controller.svc.CompletePayout(c.Request().Context(), reqBody.TransferRef)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				// non-fatal: the transfer may belong to another system
				c.Logger().Warnf("Webhook for unknown transfer transfer_ref:%s", reqBody.TransferRef)
				return c.NoContent(http.StatusOK)
			}
			c.Logger().Errorf("Failed to complete payout transfer_ref:%s error: %v", reqBody.TransferRef, err)
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, payout)
	default:
		c.Logger().Infof("Ignoring gateway event type:%s", reqBody.Type)
		return c.NoContent(http.StatusOK)
	}
}

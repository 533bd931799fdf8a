package controllers

import (
	"errors"

	"github.com/gigpay/escrowhub/gateway"
	"github.com/gigpay/escrowhub/lib/responses"
	"github.com/gigpay/escrowhub/lib/service"
	"github.com/labstack/echo/v4"
)

// writeServiceError maps the service error taxonomy onto the JSON error
// envelopes. Gateway failures intentionally collapse into a generic
// message; processor internals never reach the user.
func writeServiceError(c echo.Context, err error) error {
	var response responses.ErrorResponse
	switch {
	case errors.Is(err, service.ErrForbidden):
		response = responses.ForbiddenError
	case errors.Is(err, service.ErrNotFound):
		response = responses.NotFoundError
	case errors.Is(err, service.ErrInvalidState):
		response = responses.InvalidStateError
	case errors.Is(err, service.ErrDuplicateEscrow):
		response = responses.DuplicateEscrowError
	case errors.Is(err, service.ErrMilestoneSumMismatch):
		response = responses.MilestoneSumMismatchError
	case errors.Is(err, service.ErrInsufficientFunds):
		response = responses.NotEnoughBalanceError
	case errors.Is(err, service.ErrBelowMinimum):
		response = responses.BelowMinimumError
	case errors.Is(err, service.ErrPayoutNotEnabled):
		response = responses.PayoutNotEnabledError
	case errors.Is(err, service.ErrDuplicatePendingPayout):
		response = responses.DuplicatePendingPayoutError
	case errors.Is(err, service.ErrFeedbackRequired):
		response = responses.BadArgumentsError
	case errors.Is(err, service.ErrPaymentDeclined), isGatewayError(err):
		response = responses.PaymentProcessorError
	default:
		response = responses.GeneralServerError
	}
	return c.JSON(response.HttpStatusCode, response)
}

func isGatewayError(err error) bool {
	var gwErr *gateway.Error
	return errors.As(err, &gwErr)
}

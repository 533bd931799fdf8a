package responses

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error          bool   `json:"error"`
	Code           int    `json:"code"`
	Message        string `json:"message"`
	HttpStatusCode int    `json:"-"`
}

var GeneralServerError = ErrorResponse{
	Error:          true,
	Code:           6,
	Message:        "Something went wrong. Please try again later",
	HttpStatusCode: 500,
}

var BadArgumentsError = ErrorResponse{
	Error:          true,
	Code:           8,
	Message:        "Bad arguments",
	HttpStatusCode: 400,
}

var BadAuthError = ErrorResponse{
	Error:          true,
	Code:           1,
	Message:        "bad auth",
	HttpStatusCode: 401,
}

var ForbiddenError = ErrorResponse{
	Error:          true,
	Code:           3,
	Message:        "you are not allowed to perform this action",
	HttpStatusCode: 403,
}

var NotFoundError = ErrorResponse{
	Error:          true,
	Code:           4,
	Message:        "record not found",
	HttpStatusCode: 404,
}

var InvalidStateError = ErrorResponse{
	Error:          true,
	Code:           20,
	Message:        "operation is not allowed in the current state",
	HttpStatusCode: 409,
}

var DuplicateEscrowError = ErrorResponse{
	Error:          true,
	Code:           21,
	Message:        "an escrow already exists for this engagement",
	HttpStatusCode: 409,
}

var MilestoneSumMismatchError = ErrorResponse{
	Error:          true,
	Code:           22,
	Message:        "milestone amounts do not add up to the escrow amount",
	HttpStatusCode: 400,
}

var NotEnoughBalanceError = ErrorResponse{
	Error:          true,
	Code:           2,
	Message:        "not enough available balance",
	HttpStatusCode: 400,
}

var BelowMinimumError = ErrorResponse{
	Error:          true,
	Code:           23,
	Message:        "amount is below the platform minimum",
	HttpStatusCode: 400,
}

var PayoutNotEnabledError = ErrorResponse{
	Error:          true,
	Code:           24,
	Message:        "payouts are not enabled for this account. Please verify your bank account first",
	HttpStatusCode: 400,
}

var DuplicatePendingPayoutError = ErrorResponse{
	Error:          true,
	Code:           25,
	Message:        "a payout is already in progress for this account",
	HttpStatusCode: 409,
}

// PaymentProcessorError deliberately hides gateway internals from the user.
var PaymentProcessorError = ErrorResponse{
	Error:          true,
	Code:           10,
	Message:        "payment could not be processed, please try again",
	HttpStatusCode: 502,
}

func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	c.Logger().Error(err)
	if hub := sentryecho.GetHubFromContext(c); hub != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("UserID", c.Get("UserID"))
			hub.CaptureException(err)
		})
	}
	if he, ok := err.(*echo.HTTPError); ok {
		c.JSON(he.Code, he.Message)
	} else {
		c.JSON(http.StatusInternalServerError, GeneralServerError)
	}
}

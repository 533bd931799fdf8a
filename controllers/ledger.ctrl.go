package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gigpay/escrowhub/lib/responses"
	"github.com/gigpay/escrowhub/lib/service"
	"github.com/labstack/echo/v4"
)

// LedgerController : Ledger history controller struct
type LedgerController struct {
	svc *service.EscrowhubService
}

func NewLedgerController(svc *service.EscrowhubService) *LedgerController {
	return &LedgerController{svc: svc}
}

// GetLedger returns the caller's ledger entries, newest first. Supports
// filtering by entry type (?type=credit|debit) and by creation time
// (?since=...&until=..., RFC 3339).
func (controller *LedgerController) GetLedger(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	filter := service.LedgerFilter{
		EntryType: c.QueryParam("type"),
	}
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filter.Offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if since := c.QueryParam("since"); since != "" {
		parsed, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.Logger().Errorf("Invalid since parameter user_id:%v error: %v", userID, err)
			return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
		}
		filter.Since = parsed
	}
	if until := c.QueryParam("until"); until != "" {
		parsed, err := time.Parse(time.RFC3339, until)
		if err != nil {
			c.Logger().Errorf("Invalid until parameter user_id:%v error: %v", userID, err)
			return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
		}
		filter.Until = parsed
	}

	wallet, err := controller.svc.GetOrCreateWallet(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Errorf("Failed to load wallet user_id:%v error: %v", userID, err)
		return writeServiceError(c, err)
	}
	entries, err := controller.svc.LedgerEntriesFor(c.Request().Context(), wallet.ID, filter)
	if err != nil {
		c.Logger().Errorf("Failed to load ledger entries user_id:%v error: %v", userID, err)
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}

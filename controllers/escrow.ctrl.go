package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gigpay/escrowhub/lib/responses"
	"github.com/gigpay/escrowhub/lib/service"
	"github.com/labstack/echo/v4"
)

// EscrowController : Escrow lifecycle controller struct
type EscrowController struct {
	svc *service.EscrowhubService
}

func NewEscrowController(svc *service.EscrowhubService) *EscrowController {
	return &EscrowController{svc: svc}
}

type MilestoneProposalBody struct {
	Title   string    `json:"title" validate:"required"`
	Amount  int64     `json:"amount" validate:"required,gt=0"`
	DueDate time.Time `json:"due_date,omitempty"`
}

type CreateEscrowRequestBody struct {
	EngagementID string                  `json:"engagement_id" validate:"required"`
	PayeeID      int64                   `json:"payee_id" validate:"required"`
	Amount       int64                   `json:"amount" validate:"required,gt=0"`
	Milestones   []MilestoneProposalBody `json:"milestones" validate:"required,min=1,dive"`
}

type FundEscrowRequestBody struct {
	PaymentMethodRef string `json:"payment_method" validate:"required"`
}

type RefundEscrowRequestBody struct {
	Reason string `json:"reason"`
}

func (controller *EscrowController) CreateEscrow(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	reqBody := CreateEscrowRequestBody{}
	if err := c.Bind(&reqBody); err != nil {
		c.Logger().Errorf("Failed to load create escrow request body: user_id:%v error: %v", userID, err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&reqBody); err != nil {
		c.Logger().Errorf("Invalid create escrow request body user_id:%v error: %v", userID, err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	proposals := make([]service.MilestoneProposal, 0, len(reqBody.Milestones))
	for _, m := range reqBody.Milestones {
		proposals = append(proposals, service.MilestoneProposal{
			Title:   m.Title,
			Amount:  m.Amount,
			DueDate: m.DueDate,
		})
	}

	escrow, err := controller.svc.CreateEscrow(c.Request().Context(), reqBody.EngagementID, userID, reqBody.PayeeID, reqBody.Amount, proposals)
	if err != nil {
		c.Logger().Errorf("Failed to create escrow user_id:%v engagement_id:%s error: %v", userID, reqBody.EngagementID, err)
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, escrow)
}

func (controller *EscrowController) FundEscrow(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	escrowID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	reqBody := FundEscrowRequestBody{}
	if err := c.Bind(&reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	escrow, err := controller.svc.FundEscrow(c.Request().Context(), escrowID, userID, reqBody.PaymentMethodRef)
	if err != nil {
		c.Logger().Errorf("Failed to fund escrow escrow_id:%v user_id:%v error: %v", escrowID, userID, err)
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, escrow)
}

func (controller *EscrowController) RefundEscrow(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	escrowID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	reqBody := RefundEscrowRequestBody{}
	if err := c.Bind(&reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	escrow, err := controller.svc.RefundEscrow(c.Request().Context(), escrowID, userID, reqBody.Reason)
	if err != nil {
		c.Logger().Errorf("Failed to refund escrow escrow_id:%v user_id:%v error: %v", escrowID, userID, err)
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, escrow)
}

func (controller *EscrowController) DisputeEscrow(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	escrowID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	escrow, err := controller.svc.MarkEscrowDisputed(c.Request().Context(), escrowID, userID)
	if err != nil {
		c.Logger().Errorf("Failed to dispute escrow escrow_id:%v user_id:%v error: %v", escrowID, userID, err)
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, escrow)
}

type EscrowResponseBody struct {
	Escrow     interface{} `json:"escrow"`
	Milestones interface{} `json:"milestones"`
}

func (controller *EscrowController) GetEscrow(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	escrowID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	escrow, err := controller.svc.FindEscrow(c.Request().Context(), escrowID)
	if err != nil {
		return writeServiceError(c, err)
	}
	if escrow.PayerID != userID && escrow.PayeeID != userID {
		return c.JSON(http.StatusForbidden, responses.ForbiddenError)
	}
	milestones, err := controller.svc.MilestonesFor(c.Request().Context(), escrow.ID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, &EscrowResponseBody{
		Escrow:     escrow,
		Milestones: milestones,
	})
}

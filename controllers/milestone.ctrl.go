package controllers

import (
	"net/http"
	"strconv"

	"github.com/gigpay/escrowhub/lib/responses"
	"github.com/gigpay/escrowhub/lib/service"
	"github.com/labstack/echo/v4"
)

// MilestoneController : Milestone lifecycle controller struct
type MilestoneController struct {
	svc *service.EscrowhubService
}

func NewMilestoneController(svc *service.EscrowhubService) *MilestoneController {
	return &MilestoneController{svc: svc}
}

type RejectMilestoneRequestBody struct {
	Feedback string `json:"feedback" validate:"required"`
}

func (controller *MilestoneController) SubmitMilestone(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	milestoneID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	milestone, err := controller.svc.SubmitMilestone(c.Request().Context(), milestoneID, userID)
	if err != nil {
		c.Logger().Errorf("Failed to submit milestone milestone_id:%v user_id:%v error: %v", milestoneID, userID, err)
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, milestone)
}

// ApproveMilestone releases the milestone amount from the escrow hold to
// the payee.
func (controller *MilestoneController) ApproveMilestone(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	milestoneID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	milestone, err := controller.svc.FindMilestone(c.Request().Context(), milestoneID)
	if err != nil {
		return writeServiceError(c, err)
	}
	escrow, milestone, err := controller.svc.ReleaseMilestone(c.Request().Context(), milestone.EscrowID, milestoneID, userID)
	if err != nil {
		c.Logger().Errorf("Failed to release milestone milestone_id:%v user_id:%v error: %v", milestoneID, userID, err)
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, &EscrowResponseBody{
		Escrow:     escrow,
		Milestones: []interface{}{milestone},
	})
}

func (controller *MilestoneController) RejectMilestone(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	milestoneID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	reqBody := RejectMilestoneRequestBody{}
	if err := c.Bind(&reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	milestone, err := controller.svc.RejectMilestone(c.Request().Context(), milestoneID, userID, reqBody.Feedback)
	if err != nil {
		c.Logger().Errorf("Failed to reject milestone milestone_id:%v user_id:%v error: %v", milestoneID, userID, err)
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, milestone)
}

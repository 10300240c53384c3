package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/middleware"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/services"
)

// BulkRunController handles HTTP requests for bulk run settlement.
type BulkRunController struct {
	settlementService services.SettlementService
}

// NewBulkRunController creates a new BulkRunController.
func NewBulkRunController(settlementService services.SettlementService) *BulkRunController {
	return &BulkRunController{settlementService: settlementService}
}

func writeServiceError(ctx *gin.Context, svcErr *services.ServiceError) {
	if svcErr.Failure != nil {
		ctx.Set("bulk_run_id", svcErr.Failure.BulkRunID.String())
		ctx.Set("run_stage", svcErr.Failure.Stage)
		ctx.JSON(svcErr.StatusCode, svcErr.Failure)
		return
	}
	ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
}

// SubmitBulkRun handles POST /bulk-runs.
func (bc *BulkRunController) SubmitBulkRun(ctx *gin.Context) {
	id, err := middleware.IdentityFrom(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.BulkRunRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	resp, svcErr := bc.settlementService.SubmitBulkRun(ctx.Request.Context(), id.AccountID, &req)
	if svcErr != nil {
		writeServiceError(ctx, svcErr)
		return
	}

	ctx.Set("bulk_run_id", resp.BulkRunID.String())
	ctx.JSON(http.StatusOK, resp)
}

// GetRunRecovery handles GET /bulk-runs/:runId (admin only).
func (bc *BulkRunController) GetRunRecovery(ctx *gin.Context) {
	runID, err := uuid.Parse(ctx.Param("runId"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return
	}

	view, svcErr := bc.settlementService.GetRunRecovery(ctx.Request.Context(), runID)
	if svcErr != nil {
		writeServiceError(ctx, svcErr)
		return
	}

	ctx.JSON(http.StatusOK, view)
}

// GetBalance handles GET /accounts/me/balance.
func (bc *BulkRunController) GetBalance(ctx *gin.Context) {
	id, err := middleware.IdentityFrom(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	balance, svcErr := bc.settlementService.GetBalance(ctx.Request.Context(), id.AccountID)
	if svcErr != nil {
		writeServiceError(ctx, svcErr)
		return
	}

	ctx.JSON(http.StatusOK, balance)
}

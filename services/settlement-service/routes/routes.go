package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/controllers"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/middleware"
)

// RegisterSettlementRoutes sets up the bulk run and balance routes.
func RegisterSettlementRoutes(r *gin.Engine, bc *controllers.BulkRunController) {
	bulkRuns := r.Group("/bulk-runs")
	bulkRuns.Use(middleware.RequireAccount())
	bulkRuns.POST("", bc.SubmitBulkRun)

	admin := bulkRuns.Group("")
	admin.Use(middleware.RequireRole(middleware.RoleAdmin))
	admin.GET("/:runId", bc.GetRunRecovery)

	accounts := r.Group("/accounts")
	accounts.Use(middleware.RequireAccount())
	accounts.GET("/me/balance", bc.GetBalance)
}

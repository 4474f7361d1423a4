package api

import (
	"github.com/gin-gonic/gin"

	"housematch/server/internal/models"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/health", handler.Health)

		api.PUT("/listings/:id", handler.UpsertEntity(models.KindListing))
		api.DELETE("/listings/:id", handler.DeleteEntity(models.KindListing))
		api.GET("/listings/:id/matches", handler.GetListingMatches)

		api.PUT("/buyers/:id", handler.UpsertEntity(models.KindBuyer))
		api.DELETE("/buyers/:id", handler.DeleteEntity(models.KindBuyer))
		api.GET("/buyers/:id/matches", handler.GetBuyerMatches)

		api.POST("/admin/rebuild", handler.Rebuild)

		api.POST("/activity", handler.PostActivity)
		api.POST("/sessions", handler.OpenSession)
		api.POST("/sessions/:id/close", handler.CloseSession)
		api.GET("/stats/usage", handler.GetUsageStats)
	}
}

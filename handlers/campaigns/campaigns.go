package campaigns

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"inua-fund-server/handlers"
	"inua-fund-server/models"
)

type CampaignLister interface {
	Active(ctx context.Context) ([]models.Campaign, error)
}

func RegisterCampaignsRoutes(r gin.IRouter, campaigns CampaignLister, log *logrus.Logger) {
	r.GET("/campaigns", GetActiveCampaigns(campaigns, log))
}

// GetActiveCampaigns feeds the purpose picker on the donation form.
func GetActiveCampaigns(campaigns CampaignLister, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := campaigns.Active(c.Request.Context())
		if err != nil {
			handlers.Logger(c, log).WithError(err).Error("Failed to list campaigns")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch campaigns"})
			return
		}
		if list == nil {
			list = []models.Campaign{}
		}

		c.JSON(http.StatusOK, gin.H{"campaigns": list})
	}
}

package donations

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"inua-fund-server/handlers"
	"inua-fund-server/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ListDonations returns recorded donations, newest first.
func (h *Handler) ListDonations(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultPageSize)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}
	if limit == 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	donations, total, err := h.donations.List(c.Request.Context(), limit, offset)
	if err != nil {
		handlers.Logger(c, h.log).WithError(err).Error("Failed to list donations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch donations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   donations,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetDonation looks up one donation by receipt number or CheckoutRequestID.
func (h *Handler) GetDonation(c *gin.Context) {
	d, err := h.donations.FindByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrDonationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Donation not found"})
		return
	}
	if err != nil {
		handlers.Logger(c, h.log).WithError(err).Error("Failed to fetch donation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch donation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": d})
}

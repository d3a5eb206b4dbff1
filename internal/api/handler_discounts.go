package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"computer-club-backend/internal/discount"
	"computer-club-backend/internal/model"
)

// GetDiscounts handles GET /api/discounts.
func (h *Handler) GetDiscounts(c *gin.Context) {
	discounts, err := h.discounts.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if discounts == nil {
		discounts = []model.Discount{}
	}
	c.JSON(http.StatusOK, discounts)
}

// PostDiscount handles POST /api/discounts.
func (h *Handler) PostDiscount(c *gin.Context) {
	var in discount.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	d, err := h.discounts.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// DeleteDiscount handles DELETE /api/discounts/:id.
func (h *Handler) DeleteDiscount(c *gin.Context) {
	if err := h.discounts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

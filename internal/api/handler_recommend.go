package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"computer-club-backend/internal/recommend"
)

// emptyReason returns the message for results that are legitimately empty.
func emptyReason(err error) (string, bool) {
	if errors.Is(err, recommend.ErrNoBookings) || errors.Is(err, recommend.ErrNoDevices) {
		return err.Error(), true
	}
	return "", false
}

func (h *Handler) recommendations(c *gin.Context, fn func(context.Context, string) ([]recommend.Recommendation, error)) {
	recs, err := fn(c.Request.Context(), c.Param("userId"))
	if reason, ok := emptyReason(err); ok {
		c.JSON(http.StatusOK, gin.H{"recommendations": []recommend.Recommendation{}, "reason": reason})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

// GetRecommendations handles GET /api/recommendations/:userId.
func (h *Handler) GetRecommendations(c *gin.Context) {
	h.recommendations(c, h.recommender.Recommend)
}

// GetFilteredRecommendations handles GET /api/recommendations/filtered/:userId.
func (h *Handler) GetFilteredRecommendations(c *gin.Context) {
	h.recommendations(c, h.recommender.RecommendAvailable)
}

// GetUserProfile handles GET /api/user-profile/:userId.
func (h *Handler) GetUserProfile(c *gin.Context) {
	profile, err := h.recommender.Profile(c.Request.Context(), c.Param("userId"))
	if reason, ok := emptyReason(err); ok {
		c.JSON(http.StatusOK, gin.H{"profile": nil, "reason": reason})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// GetUserActivity handles GET /api/user-activity/:userId.
func (h *Handler) GetUserActivity(c *gin.Context) {
	activity, err := h.recommender.Activity(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, activity)
}

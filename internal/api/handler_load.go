package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"computer-club-backend/internal/analytics"
)

// GetLoadForecast handles GET /api/predict-load?from&to. Both bounds are dates in the
// club timezone; to defaults to from.
func (h *Handler) GetLoadForecast(c *gin.Context) {
	loc := h.prices.Location()
	rawFrom := c.Query("from")
	if rawFrom == "" {
		badRequest(c, errors.New("from is required"))
		return
	}
	from, err := parseTime(rawFrom, loc)
	if err != nil {
		badRequest(c, err)
		return
	}
	to := from
	if raw := c.Query("to"); raw != "" {
		if to, err = parseTime(raw, loc); err != nil {
			badRequest(c, err)
			return
		}
	}

	forecast, err := h.load.Predict(from, to)
	switch {
	case errors.Is(err, analytics.ErrNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		badRequest(c, err)
		return
	}
	if forecast == nil {
		forecast = []analytics.Forecast{}
	}
	c.JSON(http.StatusOK, forecast)
}

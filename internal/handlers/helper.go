package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := strings.TrimSpace(c.Param(param))
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

// ParseIndexParam parses a zero-based question index from the path. On
// failure it writes the error response and returns -1.
func ParseIndexParam(c *gin.Context, param string) int {
	idx, err := strconv.Atoi(c.Param(param))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "index must be a non-negative integer",
		})
		return -1
	}
	return idx
}

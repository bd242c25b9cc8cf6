// Package response writes the JSON envelope shared by every API endpoint.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope of every non-paginated reply
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// PaginatedResponse wraps one page of a listing
type PaginatedResponse struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination describes where a page sits in the full listing
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// TotalPages is ceil(total/limit), or 0 without a limit
func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message, Data: data})
}

func Paginated(c *gin.Context, data interface{}, page, limit, total int) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Success: true,
		Data:    data,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: TotalPages(total, limit),
		},
	})
}

// Error replies with message and echoes the request ID so failures can be
// matched to log lines
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, Response{
		Success:   false,
		Error:     message,
		RequestID: c.GetString("request_id"),
	})
}

func BadRequest(c *gin.Context, message string) { Error(c, http.StatusBadRequest, message) }

func NotFound(c *gin.Context, message string) { Error(c, http.StatusNotFound, message) }

func TooManyRequests(c *gin.Context, message string) { Error(c, http.StatusTooManyRequests, message) }

func InternalServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// BadGateway reports a failed upstream feed
func BadGateway(c *gin.Context, message string) { Error(c, http.StatusBadGateway, message) }

func ServiceUnavailable(c *gin.Context, message string) {
	Error(c, http.StatusServiceUnavailable, message)
}

func GatewayTimeout(c *gin.Context, message string) { Error(c, http.StatusGatewayTimeout, message) }

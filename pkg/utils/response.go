package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Response standard response structure
type Response struct {
	Code      ResponseCode `json:"code"`
	Message   string       `json:"message"`
	Data      interface{}  `json:"data,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// SuccessResponse returns success response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      CodeSuccess,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// CreatedResponse returns a 201 success response
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:      CodeSuccess,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// ErrorResponse returns error response with explicit HTTP status
func ErrorResponse(c *gin.Context, httpCode int, message string) {
	c.JSON(httpCode, Response{
		Code:      ResponseCode(httpCode * 100),
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// AppErrorResponse renders an error through the taxonomy. AppErrors keep
// their business code and mapped HTTP status; anything else is a 500.
func AppErrorResponse(c *gin.Context, err error) {
	if appErr, ok := IsAppError(err); ok {
		c.JSON(appErr.Code.HTTPStatus(), Response{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Timestamp: time.Now().Unix(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, Response{
		Code:      CodeInternalError,
		Message:   "internal server error",
		Timestamp: time.Now().Unix(),
	})
}

// PageResponse page response structure
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
}

// SuccessPageResponse returns success page response
func SuccessPageResponse(c *gin.Context, list interface{}, total int64, page, size int) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data: PageResponse{
			List:  list,
			Total: total,
			Page:  page,
			Size:  size,
		},
		Timestamp: time.Now().Unix(),
	})
}

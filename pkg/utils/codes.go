package utils

import "net/http"

// ResponseCode business response code
type ResponseCode int

// Response codes grouped by concern. 0 is success; everything else is a
// stable machine-readable code carried alongside the HTTP status.
const (
	CodeSuccess ResponseCode = 0

	// Request errors
	CodeInvalidParam ResponseCode = 40001
	CodeBadRequest   ResponseCode = 40002

	// Auth errors
	CodeUnauthorized ResponseCode = 40101
	CodeTokenExpired ResponseCode = 40102
	CodeTokenReplay  ResponseCode = 40103
	CodeForbidden    ResponseCode = 40301

	// Resource errors
	CodeNotFound          ResponseCode = 40401
	CodeProductNotFound   ResponseCode = 40402
	CodeOrderNotFound     ResponseCode = 40403
	CodeConflict          ResponseCode = 40901
	CodeIdempotencyInUse  ResponseCode = 40902
	CodeInvalidTransition ResponseCode = 40903

	// Business rule errors
	CodeOutOfStock    ResponseCode = 42201
	CodeOrderBelowMin ResponseCode = 42202
	CodeEmptyCart     ResponseCode = 42203
	CodeRateLimit     ResponseCode = 42901

	// System errors
	CodeInternalError ResponseCode = 50001
	CodeDatabaseError ResponseCode = 50002
	CodeRedisError    ResponseCode = 50003
)

// HTTPStatus maps a response code to its HTTP status.
func (c ResponseCode) HTTPStatus() int {
	switch {
	case c == CodeSuccess:
		return http.StatusOK
	case c >= 40001 && c < 40100:
		return http.StatusBadRequest
	case c >= 40101 && c < 40300:
		return http.StatusUnauthorized
	case c == CodeForbidden:
		return http.StatusForbidden
	case c >= 40401 && c < 40900:
		return http.StatusNotFound
	case c >= 40901 && c < 41000:
		return http.StatusConflict
	case c >= 42201 && c < 42900:
		return http.StatusUnprocessableEntity
	case c == CodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

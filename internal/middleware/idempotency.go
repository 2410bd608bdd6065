package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"quickcart/internal/service/idempotency"
	"quickcart/pkg/log"
	"quickcart/pkg/utils"
)

// HeaderIdempotencyKey is the client-supplied deduplication key.
const HeaderIdempotencyKey = "Idempotency-Key"

// bodyCapture tees the response so a completed request can be replayed
// byte-identically on a retry.
type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency deduplicates write requests carrying an Idempotency-Key
// header. Requests without the header pass through untouched. A replay
// with the same key and payload gets the stored response; the same key
// with a different payload, or while the first attempt is still in
// flight, is a conflict.
func Idempotency(svc idempotency.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "could not read request body")
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := idempotency.HashPayload(body)

		ctx := c.Request.Context()
		cached, err := svc.Check(ctx, key, hash)
		if err != nil {
			utils.AppErrorResponse(c, err)
			c.Abort()
			return
		}
		if cached != nil {
			c.Data(cached.Status, "application/json", []byte(cached.Body))
			c.Abort()
			return
		}

		if err := svc.Reserve(ctx, key, hash); err != nil {
			utils.AppErrorResponse(c, err)
			c.Abort()
			return
		}

		capture := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = capture

		c.Next()

		status := capture.Status()
		if status >= 200 && status < 300 {
			if err := svc.Store(ctx, key, status, capture.buf.String()); err != nil {
				log.WithComponent("idempotency").WithError(err).WithField("key", key).
					Error("could not store response")
			}
			return
		}
		// Failed operations give the key back so the client can retry.
		if err := svc.Remove(ctx, key); err != nil {
			log.WithComponent("idempotency").WithError(err).WithField("key", key).
				Error("could not release key after failure")
		}
	}
}

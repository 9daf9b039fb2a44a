package middleware

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger writes one JSON access line per request to stdout, timestamps in local time.
func Logger() fiber.Handler {
	return LoggerWithWriter(os.Stdout, time.Local)
}

// LoggerWithWriter writes one JSON access line per request to w.
// Fields: ts, request_id, method, path, status, latency (ms), bytes.
// It must run after RequestID for request_id to be filled.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	if loc == nil {
		loc = time.Local
	}
	var mu sync.Mutex
	enc := json.NewEncoder(w)

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		rid, _ := c.Locals(RequestIDLocalKey).(string)

		entry := map[string]any{
			"ts":         start.In(loc).Format(time.RFC3339Nano),
			"request_id": rid,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency":    float64(time.Since(start).Microseconds()) / 1000,
			"bytes":      len(c.Response().Body()),
		}

		mu.Lock()
		_ = enc.Encode(entry)
		mu.Unlock()

		return err
	}
}

package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// GzipRequestMiddleware transparently inflates gzip request bodies before the
// handlers bind them. A request that advertises gzip but carries a broken
// stream gets a 400.
func GzipRequestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if hasGzipEncoding(req.Header.Get(echo.HeaderContentEncoding)) {
				if err := inflateRequestBody(req); err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
				}
			}
			return next(c)
		}
	}
}

// inflateRequestBody swaps req.Body for the decompressed stream and strips
// the headers that no longer describe it.
func inflateRequestBody(req *http.Request) error {
	raw := req.Body
	zr, err := gzip.NewReader(raw)
	if err != nil {
		_ = raw.Close()
		return err
	}
	req.Body = &inflatedBody{zr: zr, raw: raw}
	req.ContentLength = -1
	req.Header.Del(echo.HeaderContentEncoding)
	req.Header.Del(echo.HeaderContentLength)
	return nil
}

func hasGzipEncoding(header string) bool {
	for header != "" {
		var enc string
		enc, header, _ = strings.Cut(header, ",")
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			return true
		}
	}
	return false
}

// inflatedBody closes both the gzip reader and the network body beneath it.
type inflatedBody struct {
	zr  *gzip.Reader
	raw io.Closer
}

func (b *inflatedBody) Read(p []byte) (int, error) { return b.zr.Read(p) }

func (b *inflatedBody) Close() error {
	err := b.zr.Close()
	if cerr := b.raw.Close(); err == nil {
		err = cerr
	}
	return err
}

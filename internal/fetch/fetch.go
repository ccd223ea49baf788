// Package fetch 负责获取目标页面的原始 HTML：一次请求、无重试。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxBodyBytes 是读取 body 的上限，超出部分被截断。
const MaxBodyBytes = 16 << 20

var ErrEmptyBody = errors.New("empty response body")

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	return fmt.Sprintf("HTTP %d url=%s", e.StatusCode, e.URL)
}

// IsHTTPStatus 判断 err 是否为 HTTPStatusError。
func IsHTTPStatus(err error) bool {
	var e *HTTPStatusError
	return errors.As(err, &e)
}

// Page 对 pageURL 发起一次 GET 并返回 body。
//
// 约束：不做缓存、不做重试（超时与 UA 由 client 的 Transport 统一控制）。
func Page(ctx context.Context, c *http.Client, pageURL string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return nil, errors.New("url 不能为空")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 丢弃 body，便于连接复用。
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &HTTPStatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("读取响应失败：%w", err)
	}
	if len(b) == 0 {
		return nil, ErrEmptyBody
	}
	return b, nil
}

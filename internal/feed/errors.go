package feed

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidID 表示 id 不是纯数字。详情请求体是文本替换拼出来的，非数字 id 一律拒绝。
	ErrInvalidID = errors.New("feed: invalid notam id")
	// ErrClosed 表示 Feed 已经 Close。
	ErrClosed = errors.New("feed: closed")
)

// StatusError 表示 AeroInfo 返回了非 2xx 的 HTTP 状态码。
// 失败的响应不会写入缓存，也不会自动重试。
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string // 原因短语，例如 "Service Unavailable"
}

func (e *StatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	reason := strings.TrimSpace(e.Status)
	if reason == "" {
		return fmt.Sprintf("HTTP request failed with status: %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP request failed with status: %d %s", e.StatusCode, reason)
}

package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/iaanotams/internal/infra/cache"
)

const (
	DefaultListingURL = "http://ext.iaa.gov.il/aeroinfo/AeroInfo.aspx"
	DefaultDetailURL  = "http://ext.iaa.gov.il/aeroinfo/AeroInfo.asmx"

	soapAction = "http://tempuri.org/getMoreMsgInfo"

	listingCacheKey = "list_html"
)

// detailEnvelope 是 getMoreMsgInfo 的 SOAP 请求体，%s 处替换为内部编号。
const detailEnvelope = `<?xml version='1.0' encoding='utf-8'?>
<soap:Envelope xmlns:xsi='http://www.w3.org/2001/XMLSchema-instance' xmlns:xsd='http://www.w3.org/2001/XMLSchema' xmlns:soap='http://schemas.xmlsoap.org/soap/envelope/'>
    <soap:Body>
        <getMoreMsgInfo xmlns='http://tempuri.org/'>
            <msgNum>%s</msgNum>
            <mode>more</mode>
            <CurrOrHist>Current</CurrOrHist>
        </getMoreMsgInfo>
    </soap:Body>
</soap:Envelope>`

var (
	listingQuery = url.Values{"msgType": {"Notam"}}
	detailQuery  = url.Values{"op": {"getMoreMsgInfo"}}
)

// Feed 从 IAA AeroInfo 抓取 NOTAM 列表页与单条详情，并带有短期缓存。
//
// 约束：
// - 缓存由 Feed 持有，生命周期与 Feed 一致
// - 只缓存 2xx 响应；失败立即返回给调用方，不重试
// - 可被多个 goroutine 同时调用
type Feed struct {
	client     *http.Client
	cache      *cache.Store
	listingURL string
	detailURL  string
	log        *slog.Logger

	mu     sync.Mutex
	closed bool
}

type settings struct {
	listingURL string
	detailURL  string
	ttl        time.Duration
	size       int
	log        *slog.Logger
}

// Option 调整 Feed 的可选参数。
type Option func(*settings)

// WithListingURL 替换列表页地址（镜像站或测试服务器）。
func WithListingURL(u string) Option { return func(s *settings) { s.listingURL = u } }

// WithDetailURL 替换 SOAP 详情接口地址。
func WithDetailURL(u string) Option { return func(s *settings) { s.detailURL = u } }

func WithCacheTTL(d time.Duration) Option { return func(s *settings) { s.ttl = d } }

func WithCacheSize(n int) Option { return func(s *settings) { s.size = n } }

func WithLogger(l *slog.Logger) Option { return func(s *settings) { s.log = l } }

// New 构造 Feed。c 为 nil 时使用 http.DefaultClient。
func New(c *http.Client, opts ...Option) *Feed {
	st := settings{
		listingURL: DefaultListingURL,
		detailURL:  DefaultDetailURL,
		ttl:        cache.DefaultTTL,
		size:       cache.DefaultSize,
	}
	for _, o := range opts {
		o(&st)
	}
	if c == nil {
		c = http.DefaultClient
	}
	if st.log == nil {
		st.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Feed{
		client:     c,
		cache:      cache.New(st.ttl, st.size),
		listingURL: strings.TrimSpace(st.listingURL),
		detailURL:  strings.TrimSpace(st.detailURL),
		log:        st.log,
	}
}

// FetchListing 返回 NOTAM 列表页 HTML（GET <listing>?msgType=Notam）。
func (f *Feed) FetchListing(ctx context.Context) (string, error) {
	if err := f.checkOpen(); err != nil {
		return "", err
	}
	if body, ok := f.cache.Get(listingCacheKey); ok {
		f.log.Debug("cache hit", "key", listingCacheKey)
		return body, nil
	}

	u := withQuery(f.listingURL, listingQuery)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	body, err := f.do(req)
	if err != nil {
		return "", err
	}
	f.store(listingCacheKey, body)
	return body, nil
}

// FetchDetail 通过 SOAP getMoreMsgInfo 返回单条 NOTAM 的详情 XML。
//
// id 是列表页里 divMainInfo_<id> 的内部编号（例如 522159），不是 ICAO 编号。
// 只接受纯数字：请求体是文本替换，不做 XML 转义。
func (f *Feed) FetchDetail(ctx context.Context, id string) (string, error) {
	if err := f.checkOpen(); err != nil {
		return "", err
	}
	if !isDigits(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if body, ok := f.cache.Get(id); ok {
		f.log.Debug("cache hit", "key", id)
		return body, nil
	}

	u := withQuery(f.detailURL, detailQuery)
	payload := fmt.Sprintf(detailEnvelope, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("SOAPAction", soapAction)
	req.Header.Set("Content-Type", "text/xml")

	body, err := f.do(req)
	if err != nil {
		return "", err
	}
	f.store(id, body)
	return body, nil
}

// Close 释放空闲连接并清空缓存。重复调用安全。
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.cache.Purge()
	f.client.CloseIdleConnections()
	return nil
}

// store 只在 Feed 仍然打开时写缓存：Close 期间仍在途的请求不能把结果写回已清空的缓存。
func (f *Feed) store(key, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.cache.Set(key, body)
}

func (f *Feed) checkOpen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	return nil
}

func (f *Feed) do(req *http.Request) (string, error) {
	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 读掉 body 以便连接复用；内容本身不需要。
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		f.log.Debug("request failed", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode)
		return "", &StatusError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Status:     reasonPhrase(resp),
		}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	f.log.Debug("request ok", "method", req.Method, "url", req.URL.String(), "bytes", len(b), "elapsed", time.Since(start))
	return string(b), nil
}

// reasonPhrase 从 "503 Service Unavailable" 中取出原因短语。
func reasonPhrase(resp *http.Response) string {
	s := strings.TrimSpace(resp.Status)
	if code, rest, ok := strings.Cut(s, " "); ok && code == fmt.Sprint(resp.StatusCode) {
		return strings.TrimSpace(rest)
	}
	if s == "" {
		return http.StatusText(resp.StatusCode)
	}
	return s
}

func withQuery(base string, q url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + q.Encode()
	}
	merged := u.Query()
	for k, vs := range q {
		merged[k] = vs
	}
	u.RawQuery = merged.Encode()
	return u.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

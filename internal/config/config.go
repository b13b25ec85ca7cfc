package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/John-Robertt/iaanotams/internal/feed"
	"github.com/John-Robertt/iaanotams/internal/infra/cache"
	"github.com/John-Robertt/iaanotams/internal/infra/httpx"
)

const (
	// ErrCodeNotFound 表示通过 --config 显式指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件/环境变量无法读取、解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// FileName 是工作目录下默认读取的配置文件（可选）。
	FileName = "notams.json"
	// DotEnvName 是工作目录下默认读取的 .env 文件（可选）。
	DotEnvName = ".env"
)

// 环境变量键（也可以写在 .env 中；真实环境变量优先于 .env）。
const (
	EnvListingURL  = "IAANOTAMS_LISTING_URL"
	EnvDetailURL   = "IAANOTAMS_DETAIL_URL"
	EnvProxyURL    = "IAANOTAMS_PROXY_URL"
	EnvCacheTTL    = "IAANOTAMS_CACHE_TTL"
	EnvMinInterval = "IAANOTAMS_MIN_INTERVAL"
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
type CLIArgs struct {
	// ConfigPath 非空时该文件必须存在；为空时尝试 <cwd>/notams.json（可选）。
	ConfigPath string

	ProxyURL string
	ProxySet bool
}

// FileConfig 对应 notams.json 的解析结构。时长字段使用 Go duration 字符串（例如 "30s"）。
type FileConfig struct {
	ListingURL     string       `json:"listing_url"`
	DetailURL      string       `json:"detail_url"`
	Proxy          *ProxyConfig `json:"proxy"`
	CacheTTL       string       `json:"cache_ttl"`
	CacheSize      int          `json:"cache_size"`
	ConnectTimeout string       `json:"connect_timeout"`
	MinInterval    string       `json:"min_interval"`
	RetryMax       int          `json:"retry_max"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	ListingURL string
	DetailURL  string
	ProxyURL   string

	CacheTTL  time.Duration
	CacheSize int

	ConnectTimeout time.Duration
	MinInterval    time.Duration
	RetryMax       int
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取配置文件与环境变量，并与 CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：CLI > 环境变量 > <cwd>/.env > 配置文件 > 内置默认值。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath = absCleanFrom(cwdAbs, p)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if required && !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}

	envPath := filepath.Join(cwdAbs, DotEnvName)
	env, err := readEnv(envPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: envPath, Err: err}
	}

	return merge(cli, env, fc, cfgPath)
}

func merge(cli CLIArgs, env func(string) string, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	listingURL := pick(env(EnvListingURL), fc.ListingURL, feed.DefaultListingURL)
	if err := validateHTTPURL("listing_url", listingURL); err != nil {
		return invalid(err)
	}
	detailURL := pick(env(EnvDetailURL), fc.DetailURL, feed.DefaultDetailURL)
	if err := validateHTTPURL("detail_url", detailURL); err != nil {
		return invalid(err)
	}

	fileProxy := ""
	if fc.Proxy != nil {
		fileProxy = fc.Proxy.URL
	}
	proxyURL := pick(env(EnvProxyURL), fileProxy, "")
	if cli.ProxySet {
		proxyURL = strings.TrimSpace(cli.ProxyURL)
	}
	if proxyURL != "" {
		if err := validateHTTPURL("proxy.url", proxyURL); err != nil {
			return invalid(err)
		}
	}

	cacheTTL, err := parseDuration("cache_ttl", pick(env(EnvCacheTTL), fc.CacheTTL, ""), cache.DefaultTTL)
	if err != nil {
		return invalid(err)
	}
	if cacheTTL <= 0 {
		return invalid(fmt.Errorf("cache_ttl 必须为正数"))
	}

	connectTimeout, err := parseDuration("connect_timeout", fc.ConnectTimeout, httpx.DefaultConnectTimeout)
	if err != nil {
		return invalid(err)
	}
	if connectTimeout <= 0 {
		return invalid(fmt.Errorf("connect_timeout 必须为正数"))
	}

	minInterval, err := parseDuration("min_interval", pick(env(EnvMinInterval), fc.MinInterval, ""), 0)
	if err != nil {
		return invalid(err)
	}
	if minInterval < 0 {
		return invalid(fmt.Errorf("min_interval 不能为负数"))
	}

	cacheSize := fc.CacheSize
	if cacheSize == 0 {
		cacheSize = cache.DefaultSize
	}
	if cacheSize < 1 {
		return invalid(fmt.Errorf("cache_size 必须为正数，实际 %d", cacheSize))
	}

	// 重试只作用于可重放的 GET；上限截断，避免把源站打爆。
	retryMax := fc.RetryMax
	if retryMax < 0 {
		retryMax = 0
	}
	if retryMax > 3 {
		retryMax = 3
	}

	return EffectiveConfig{
		ListingURL:     listingURL,
		DetailURL:      detailURL,
		ProxyURL:       proxyURL,
		CacheTTL:       cacheTTL,
		CacheSize:      cacheSize,
		ConnectTimeout: connectTimeout,
		MinInterval:    minInterval,
		RetryMax:       retryMax,
	}, nil
}

// pick 返回第一个非空（去除首尾空白后）的值。
func pick(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func parseDuration(field, s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s 无效：%w", field, err)
	}
	return d, nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}

// readEnv 返回一个查找函数：非空的真实环境变量优先，其次是 .env 中的值。
// .env 不存在不算错误。
func readEnv(path string) (func(string) string, error) {
	dot, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		dot = map[string]string{}
	}
	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return v
		}
		return dot[key]
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/John-Robertt/iaanotams/internal/domain"
	"github.com/John-Robertt/iaanotams/internal/parser"
)

// ErrNotFound 表示列表页中没有对应 ICAO 编号的 NOTAM。
var ErrNotFound = errors.New("notam not found in listing")

// Fetcher 是 Service 对网络层的唯一依赖（*feed.Feed 实现它）。
type Fetcher interface {
	FetchListing(ctx context.Context) (string, error)
	FetchDetail(ctx context.Context, id string) (string, error)
}

// Error 是带阶段信息的可追溯错误：Stage 为 "fetch" 或 "parse"。
type Error struct {
	ID    string // 内部编号；列表页阶段为空
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("listing stage=%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("notam=%s stage=%s: %v", e.ID, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result 是 Details 中单条 id 的处理结果；Err 非 nil 时 Record 为空。
type Result struct {
	ID     string
	Record domain.NoticeRecord
	Err    error
}

// Service 串起“抓列表 -> 解析 -> 按需抓详情 -> 解析”的流程。
type Service struct {
	Feed Fetcher
}

// List 抓取并解析列表页。列表为空不是错误。
func (s Service) List(ctx context.Context) ([]domain.ListingEntry, error) {
	html, err := s.Feed.FetchListing(ctx)
	if err != nil {
		return nil, &Error{Stage: "fetch", Err: err}
	}
	return parser.ListNotams(html), nil
}

// Detail 抓取并解析单条 NOTAM 详情。
func (s Service) Detail(ctx context.Context, id string) (domain.NoticeRecord, error) {
	doc, err := s.Feed.FetchDetail(ctx, id)
	if err != nil {
		return domain.NoticeRecord{}, &Error{ID: id, Stage: "fetch", Err: err}
	}
	rec, err := parser.ParseDetail(doc)
	if err != nil {
		return domain.NoticeRecord{}, &Error{ID: id, Stage: "parse", Err: err}
	}
	return rec, nil
}

// Details 顺序处理多个 id；单条失败记录在 Result.Err 中，不中断其余条目。
// ctx 取消后剩余条目直接记为 ctx.Err()。
func (s Service) Details(ctx context.Context, ids []string) []Result {
	out := make([]Result, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			out = append(out, Result{ID: id, Err: err})
			continue
		}
		rec, err := s.Detail(ctx, id)
		out = append(out, Result{ID: id, Record: rec, Err: err})
	}
	return out
}

// Lookup 按 ICAO 编号（例如 C2000/15，大小写与首尾空白不敏感）查找并返回详情。
//
// 同时返回命中的列表条目：详情里的 MsgNumber 可能缺失，调用方可以用 entry.InternalID 定位。
func (s Service) Lookup(ctx context.Context, publicID string) (domain.ListingEntry, domain.NoticeRecord, error) {
	want := strings.TrimSpace(publicID)
	if want == "" {
		return domain.ListingEntry{}, domain.NoticeRecord{}, fmt.Errorf("public id 不能为空")
	}
	entries, err := s.List(ctx)
	if err != nil {
		return domain.ListingEntry{}, domain.NoticeRecord{}, err
	}
	for _, e := range entries {
		if strings.EqualFold(strings.TrimSpace(e.PublicID), want) {
			rec, err := s.Detail(ctx, e.InternalID)
			return e, rec, err
		}
	}
	return domain.ListingEntry{}, domain.NoticeRecord{}, fmt.Errorf("%w: %s", ErrNotFound, want)
}

package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/iaanotams/internal/domain"
)

// listingRE 把每个 divMainInfo_<数字> 与其后最近的 NotamID 单元格配对。
//
// (?i) 标签/属性名大小写不敏感；(?s) 让中间的任意内容可以跨行；
// .+? 非贪婪，保证不会越过下一个 marker 去配对更后面的单元格。
var listingRE = regexp.MustCompile(`(?is)divMainInfo_(\d+).+?<\s*td\s+class\s*=\s*["']?NotamID["']?\s*>\s*(.*?)<\s*/\s*td\s*>`)

// ListNotams 从列表页 HTML 中提取 (内部编号, ICAO 编号) 序列，顺序与文档一致。
//
// 没有任何匹配时返回空切片（不是错误）；调用方需要自行处理“空列表”。
func ListNotams(html string) []domain.ListingEntry {
	ms := listingRE.FindAllStringSubmatch(html, -1)
	out := make([]domain.ListingEntry, 0, len(ms))
	for _, m := range ms {
		out = append(out, domain.ListingEntry{
			InternalID: m[1],
			PublicID:   cellText(m[2]),
		})
	}
	return out
}

// cellText 把单元格内部 HTML 规整为纯文本：去掉嵌套标签、解码实体、压缩空白。
func cellText(inner string) string {
	raw := strings.TrimSpace(inner)
	if !strings.ContainsAny(raw, "<&") {
		return normSpace(raw)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return normSpace(raw)
	}
	return normSpace(doc.Text())
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

package parser

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/John-Robertt/iaanotams/internal/domain"
)

const (
	msgElem       = "Msg"
	msgTextElem   = "MsgText"
	msgNumberAttr = "MsgNumber"
)

// ParseDetail 把 getMoreMsgInfo 返回的 XML 解析为 NoticeRecord。
//
// 规则：
// - 取文档中第一个 Msg 元素（任意深度，按本地名匹配，忽略命名空间）
// - Msg@MsgNumber 作为内部编号；属性缺失时为空串，不报错
// - 只收集 Msg 的直接子元素 MsgText，按顺序以 "\n" 连接
// - 整个文档必须是合法 XML；缺 Msg 或缺 MsgText 返回 *StructureError
func ParseDetail(doc string) (domain.NoticeRecord, error) {
	dec := xml.NewDecoder(strings.NewReader(doc))
	dec.CharsetReader = charset.NewReaderLabel

	var (
		depth    int
		msgDepth = -1 // 第一个 Msg 所在深度；-1 表示尚未遇到
		msgDone  bool
		found    bool
		id       string

		texts   []string
		inText  bool
		textBuf strings.Builder
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.NoticeRecord{}, &StructureError{Msg: "malformed XML: " + err.Error(), Document: doc, Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case !found && t.Name.Local == msgElem:
				found = true
				msgDepth = depth
				id = attr(t, msgNumberAttr)
			case found && !msgDone && depth == msgDepth+1 && t.Name.Local == msgTextElem:
				inText = true
				textBuf.Reset()
			}
		case xml.EndElement:
			switch {
			case inText && depth == msgDepth+1:
				texts = append(texts, textBuf.String())
				inText = false
			case found && !msgDone && depth == msgDepth:
				msgDone = true
			}
			depth--
		case xml.CharData:
			// 只取 MsgText 自身的文本，不含更深层子元素的文本。
			if inText && depth == msgDepth+1 {
				textBuf.Write(t)
			}
		}
	}

	if !found {
		return domain.NoticeRecord{}, &StructureError{Msg: "Msg element missing", Document: doc}
	}
	if len(texts) == 0 {
		return domain.NoticeRecord{}, &StructureError{Msg: "NOTAM contents seem to be missing", Document: doc}
	}
	return domain.NoticeRecord{
		InternalID: id,
		Content:    strings.Join(texts, "\n"),
	}, nil
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

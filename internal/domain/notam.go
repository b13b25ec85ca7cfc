package domain

// ListingEntry 是 NOTAM 列表页中的一条记录（只由解析列表页产生）。
//
// 约束：
// - InternalID 是 IAA 内部编号（纯数字字符串，例如 532372），不是 ICAO 编号
// - PublicID 是列表单元格中展示的 ICAO 编号（例如 C2000/15）
// - 顺序与文档顺序一致；同一快照内 InternalID 视为唯一，但不做校验
type ListingEntry struct {
	InternalID string `json:"internal_id"`
	PublicID   string `json:"public_id"`
}

// NoticeRecord 是单条 NOTAM 的详情（只由解析详情 XML 产生）。
//
// InternalID 取自 Msg@MsgNumber；该属性缺失时为空串而不是错误。
// Content 是所有 MsgText 文本按文档顺序以 "\n" 连接的结果。
type NoticeRecord struct {
	InternalID string `json:"internal_id"`
	Content    string `json:"content"`
}

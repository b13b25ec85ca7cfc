package parser

import (
	"errors"
	"fmt"
)

// ErrStructure 是所有 *StructureError 的哨兵，便于 errors.Is 判断。
var ErrStructure = errors.New("parser: badly-structured XML")

// StructureError 表示详情 XML 缺少必需的元素。
// Document 保留完整的原始输入，方便排查源站格式变化。
type StructureError struct {
	Msg      string
	Document string
	Err      error // 底层 XML 语法错误（若有）
}

func (e *StructureError) Error() string {
	if e == nil {
		return ErrStructure.Error()
	}
	return fmt.Sprintf("Badly-structured XML: %s\nIn: %s", e.Msg, e.Document)
}

func (e *StructureError) Is(target error) bool { return target == ErrStructure }

func (e *StructureError) Unwrap() error { return e.Err }

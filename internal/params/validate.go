package params

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidField 字段结构不可信，调用方应重读
	ErrInvalidField = errors.New("invalid field")

	ErrRawOnly          = fmt.Errorf("%w: unparsed blob", ErrInvalidField)
	ErrUnknownType      = fmt.Errorf("%w: type out of range", ErrInvalidField)
	ErrNoOptions        = fmt.Errorf("%w: selection without options", ErrInvalidField)
	ErrBadIndex         = fmt.Errorf("%w: negative selection index", ErrInvalidField)
	ErrEmptyName        = fmt.Errorf("%w: empty name", ErrInvalidField)
	ErrNonPrintableName = fmt.Errorf("%w: non-printable name", ErrInvalidField)
)

// Validate 检查解析结果是否像是损坏数据，nil 表示可用
func Validate(f *Field) error {
	if f == nil {
		return ErrRawOnly
	}
	if raw, ok := f.Body.(*Raw); ok && len(raw.Data) < MinBlobLen {
		return ErrRawOnly
	}
	if f.Type > TypeCommand {
		return ErrUnknownType
	}
	if sel, ok := f.Body.(*Selection); ok {
		if len(sel.Options) == 0 {
			return ErrNoOptions
		}
		if sel.HasIndex && sel.Index < 0 {
			return ErrBadIndex
		}
	}
	if f.Name == "" {
		return ErrEmptyName
	}
	for _, r := range f.Name {
		if r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		if r < 32 || r > 126 {
			return fmt.Errorf("%w: %q", ErrNonPrintableName, f.Name)
		}
	}
	return nil
}

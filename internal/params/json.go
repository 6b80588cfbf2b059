package params

import (
	"encoding/json"
	"fmt"
)

// body 的 JSON 类别标记，反序列化时据此还原具体类型
const (
	kindNumeric   = "numeric"
	kindFloat     = "float"
	kindSelection = "selection"
	kindText      = "text"
	kindCommand   = "command"
	kindFolder    = "folder"
	kindRaw       = "raw"
)

func bodyKind(b Body) string {
	switch b.(type) {
	case *Numeric:
		return kindNumeric
	case *Float:
		return kindFloat
	case *Selection:
		return kindSelection
	case *Text:
		return kindText
	case *Command:
		return kindCommand
	case *Folder:
		return kindFolder
	case *Raw:
		return kindRaw
	default:
		return ""
	}
}

func newBody(kind string) (Body, error) {
	switch kind {
	case kindNumeric:
		return &Numeric{}, nil
	case kindFloat:
		return &Float{}, nil
	case kindSelection:
		return &Selection{}, nil
	case kindText:
		return &Text{}, nil
	case kindCommand:
		return &Command{}, nil
	case kindFolder:
		return &Folder{}, nil
	case kindRaw:
		return &Raw{}, nil
	default:
		return nil, fmt.Errorf("unknown field body kind %q", kind)
	}
}

type fieldAlias Field

// MarshalJSON 附带 kind 标记
func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		*fieldAlias
		Kind string `json:"kind,omitempty"`
	}{(*fieldAlias)(f), bodyKind(f.Body)})
}

// UnmarshalJSON 按 kind 还原 Body；缺少 kind 或 body 为 null 时 Body 为 nil
func (f *Field) UnmarshalJSON(data []byte) error {
	aux := struct {
		*fieldAlias
		Kind string          `json:"kind"`
		Body json.RawMessage `json:"body"`
	}{fieldAlias: (*fieldAlias)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	f.Body = nil
	if aux.Kind == "" || len(aux.Body) == 0 || string(aux.Body) == "null" {
		return nil
	}
	body, err := newBody(aux.Kind)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(aux.Body, body); err != nil {
		return fmt.Errorf("field %d body: %w", f.ID, err)
	}
	f.Body = body
	return nil
}

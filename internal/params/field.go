// Package params 解析 ELRS LUA 参数字段与设备信息
package params

import "fmt"

// FieldType 字段类型（type 字节低 7 位）
type FieldType uint8

const (
	TypeUint8         FieldType = 0
	TypeInt8          FieldType = 1
	TypeUint16        FieldType = 2
	TypeInt16         FieldType = 3
	TypeUint24        FieldType = 4
	TypeInt24         FieldType = 5
	TypeUint32        FieldType = 6
	TypeInt32         FieldType = 7
	TypeFloat         FieldType = 8
	TypeTextSelection FieldType = 9
	TypeString        FieldType = 10
	TypeFolder        FieldType = 11
	TypeInfo          FieldType = 12
	TypeCommand       FieldType = 13

	hiddenFlag = 0x80
	typeMask   = 0x7F
)

// IsInteger 0..7 为整数类型
func (t FieldType) IsInteger() bool { return t <= TypeInt32 }

// Width 整数类型字节宽度：type/2+1
func (t FieldType) Width() int { return int(t)/2 + 1 }

// Signed 奇数类型为有符号
func (t FieldType) Signed() bool { return t%2 == 1 }

func (t FieldType) String() string {
	switch {
	case t.IsInteger():
		if t.Signed() {
			return fmt.Sprintf("int%d", t.Width()*8)
		}
		return fmt.Sprintf("uint%d", t.Width()*8)
	case t == TypeFloat:
		return "float"
	case t == TypeTextSelection:
		return "select"
	case t == TypeString:
		return "string"
	case t == TypeFolder:
		return "folder"
	case t == TypeInfo:
		return "info"
	case t == TypeCommand:
		return "command"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Field 一个已重组并解析的参数字段
type Field struct {
	ID     byte      `json:"id"`
	Parent byte      `json:"parent"`
	Type   FieldType `json:"type"`
	Hidden bool      `json:"hidden"`
	Name   string    `json:"name"`
	Status byte      `json:"status"` // blob 最后一个字节
	Body   Body      `json:"body"`
}

// Body 按字段类型区分的内容，只有本包内的类型实现
type Body interface {
	isBody()
}

// Numeric 整数字段（type 0..7）
type Numeric struct {
	Value   *int64 `json:"value,omitempty"`
	Min     *int64 `json:"min,omitempty"`
	Max     *int64 `json:"max,omitempty"`
	Default *int64 `json:"default,omitempty"`
}

// Float 定点小数字段（type 8），Raw* 为未缩放原始值
type Float struct {
	RawValue   int32   `json:"rawValue"`
	Value      float64 `json:"value"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Default    float64 `json:"default"`
	Precision  uint8   `json:"precision"`
	Step       uint32  `json:"step"`
	HasMinMax  bool    `json:"hasMinMax"`
	HasDefault bool    `json:"hasDefault"`
}

// Selection 文本选择字段（type 9），空选项保留以维持索引
type Selection struct {
	Options  []string `json:"options"`
	Index    int      `json:"index"`
	HasIndex bool     `json:"hasIndex"`
	Unit     string   `json:"unit,omitempty"`
}

// Text 字符串/信息字段（type 10/12）
type Text struct {
	Value  string `json:"value"`
	MaxLen *uint8 `json:"maxLen,omitempty"`
}

// Command 命令字段（type 13）
type Command struct {
	Text         string `json:"text"`
	MaxLen       *uint8 `json:"maxLen,omitempty"`
	CommandState *uint8 `json:"commandState,omitempty"`
	Timeout      *uint8 `json:"timeout,omitempty"`
	Info         string `json:"info,omitempty"`
}

// Folder 目录字段（type 11），只有名称
type Folder struct{}

// Raw 无法解析的 blob（长度不足或未知类型）
type Raw struct {
	Data []byte `json:"data"`
}

func (Numeric) isBody()   {}
func (Float) isBody()     {}
func (Selection) isBody() {}
func (Text) isBody()      {}
func (Command) isBody()   {}
func (Folder) isBody()    {}
func (Raw) isBody()       {}

// Value 用于与待确认写入值比较的标量
// 整数取 value，选择取索引，浮点取原始值，命令取状态；其余回退到 Status
func (f *Field) Value() int64 {
	switch b := f.Body.(type) {
	case *Numeric:
		if b.Value != nil {
			return *b.Value
		}
	case *Selection:
		if b.HasIndex {
			return int64(b.Index)
		}
	case *Float:
		return int64(b.RawValue)
	case *Command:
		if b.CommandState != nil {
			return int64(*b.CommandState)
		}
	}
	return int64(f.Status)
}

// Options 选择字段的选项（非选择字段返回 nil）
func (f *Field) Options() []string {
	if s, ok := f.Body.(*Selection); ok {
		return s.Options
	}
	return nil
}

func (f *Field) String() string {
	return fmt.Sprintf("field{id=%d type=%s name=%q}", f.ID, f.Type, f.Name)
}

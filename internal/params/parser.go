package params

import (
	"math"
	"strings"
)

// MinBlobLen 少于该长度的 blob 只能作为 Raw 处理
const MinBlobLen = 3

// ParseField 解析重组后的字段 blob：[parent][type|hidden][name\0][按类型的内容...]
// 解析不会失败；无法识别的内容以 Raw 保留，由 Validate 判定是否可用。
func ParseField(id byte, data []byte) *Field {
	f := &Field{ID: id}
	if len(data) < MinBlobLen {
		f.Body = &Raw{Data: append([]byte(nil), data...)}
		if len(data) > 0 {
			f.Status = data[len(data)-1]
		}
		return f
	}

	f.Parent = data[0]
	f.Type = FieldType(data[1] & typeMask)
	f.Hidden = data[1]&hiddenFlag != 0
	var off int
	f.Name, off = readCString(data, 2)

	switch {
	case f.Type.IsInteger():
		f.Body = parseNumeric(data, off, f.Type)
	case f.Type == TypeFloat:
		f.Body = parseFloat(data, off)
	case f.Type == TypeTextSelection:
		f.Body = parseSelection(data, off)
	case f.Type == TypeString, f.Type == TypeInfo:
		t := &Text{}
		t.Value, off = readCString(data, off)
		if off < len(data) {
			v := data[off]
			t.MaxLen = &v
		}
		f.Body = t
	case f.Type == TypeCommand:
		f.Body = parseCommand(data, off)
	case f.Type == TypeFolder:
		f.Body = &Folder{}
	default:
		f.Body = &Raw{Data: append([]byte(nil), data...)}
	}

	f.Status = data[len(data)-1]
	return f
}

// readCString 读取 NUL 结尾字符串，返回 NUL 之后的偏移；非法 UTF-8 字节被丢弃
func readCString(buf []byte, off int) (string, int) {
	start := off
	for off < len(buf) && buf[off] != 0 {
		off++
	}
	s := strings.ToValidUTF8(string(buf[start:off]), "")
	if off < len(buf) {
		off++
	}
	return s, off
}

// readOptions 读取 ';' 分隔的选项列表
// 中间的空项保留（索引即取值）；末尾 ';' 之后的空串不追加
func readOptions(buf []byte, off int) ([]string, int) {
	var (
		opts []string
		cur  []byte
	)
	for off < len(buf) && buf[off] != 0 {
		b := buf[off]
		off++
		if b == ';' {
			opts = append(opts, strings.TrimSpace(strings.ToValidUTF8(string(cur), "")))
			cur = cur[:0]
			continue
		}
		cur = append(cur, b)
	}
	if len(cur) > 0 {
		opts = append(opts, strings.TrimSpace(strings.ToValidUTF8(string(cur), "")))
	}
	if off < len(buf) {
		off++
	}
	return opts, off
}

// readUint 大端读取 size 字节
func readUint(buf []byte, off, size int) uint64 {
	var v uint64
	for i := 0; i < size; i++ {
		v = v<<8 | uint64(buf[off+i])
	}
	return v
}

// signExtend size 字节的二进制补码转换为有符号值
func signExtend(v uint64, size int) int64 {
	shift := 64 - uint(size*8)
	return int64(v<<shift) >> shift
}

func parseNumeric(data []byte, off int, t FieldType) *Numeric {
	size := t.Width()
	n := &Numeric{}
	slots := []**int64{&n.Value, &n.Min, &n.Max, &n.Default}
	for i, slot := range slots {
		pos := off + size*i
		if pos+size > len(data) {
			break
		}
		raw := readUint(data, pos, size)
		var v int64
		if t.Signed() {
			v = signExtend(raw, size)
		} else {
			v = int64(raw)
		}
		*slot = &v
	}
	return n
}

func parseFloat(data []byte, off int) *Float {
	f := &Float{}
	read := func(pos int) (int32, bool) {
		if pos+4 > len(data) {
			return 0, false
		}
		return int32(readUint(data, pos, 4)), true
	}
	rawValue, _ := read(off)
	rawMin, hasMin := read(off + 4)
	rawMax, hasMax := read(off + 8)
	rawDefault, hasDefault := read(off + 12)
	f.RawValue = rawValue
	f.HasMinMax = hasMin && hasMax
	f.HasDefault = hasDefault
	if off+17 <= len(data) {
		f.Precision = data[off+16]
	}
	if off+21 <= len(data) {
		f.Step = uint32(readUint(data, off+17, 4))
	}

	scale := 1.0
	if f.Precision > 0 {
		scale = math.Pow10(-int(f.Precision))
	}
	f.Value = float64(rawValue) * scale
	f.Min = float64(rawMin) * scale
	f.Max = float64(rawMax) * scale
	f.Default = float64(rawDefault) * scale
	return f
}

func parseSelection(data []byte, off int) *Selection {
	s := &Selection{}
	s.Options, off = readOptions(data, off)
	if off < len(data) {
		s.Index = int(data[off])
		s.HasIndex = true
		off++
	}
	if off < len(data) && data[off] != 0 {
		s.Unit, _ = readCString(data, off)
	}
	return s
}

func parseCommand(data []byte, off int) *Command {
	c := &Command{}
	c.Text, off = readCString(data, off)
	if off < len(data) {
		v := data[off]
		c.MaxLen = &v
		off++
	}
	if off < len(data) {
		v := data[off]
		c.CommandState = &v
		off++
	}
	if off < len(data) {
		v := data[off]
		c.Timeout = &v
		off++
	}
	if off < len(data) {
		c.Info, _ = readCString(data, off)
	}
	return c
}

package mixer

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type rowsDocument struct {
	Channels []RowConfig `yaml:"channels"`
}

// EncodeRows 将通道配置序列化为 YAML（channels: [...]）
func EncodeRows(rows []RowConfig) ([]byte, error) {
	data, err := yaml.Marshal(rowsDocument{Channels: rows})
	if err != nil {
		return nil, fmt.Errorf("encode channel rows: %w", err)
	}
	return data, nil
}

// DecodeRows 解析 YAML 通道配置，每行经过 Normalize
func DecodeRows(data []byte) ([]RowConfig, error) {
	var doc rowsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode channel rows: %w", err)
	}
	rows := make([]RowConfig, len(doc.Channels))
	for i, r := range doc.Channels {
		rows[i] = r.Normalize()
	}
	return rows, nil
}

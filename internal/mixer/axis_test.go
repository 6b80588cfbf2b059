package mixer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapAxis(t *testing.T) {
	tests := []struct {
		name   string
		val    float64
		invert bool
		expo   float64
		want   int
	}{
		{"中点", 0, false, 1, 1500},
		{"正向满舵", 1, false, 1, 2000},
		{"负向满舵", -1, false, 1, 1000},
		{"反向后满舵", -1, true, 1, 2000},
		{"端点吸附", 0.9995, false, 1, 2000},
		{"负端点吸附", -0.9985, false, 1, 1000},
		{"超出范围限幅", 3.5, false, 1, 2000},
		{"半程", 0.5, false, 1, 1750},
		{"expo 2 半程", 0.5, false, 2, 1625},
		{"expo 负半程", -0.5, false, 2, 1375},
		{"NaN 视为中点", math.NaN(), false, 1, 1500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapAxis(tt.val, tt.invert, 1000, 1500, 2000, tt.expo))
		})
	}
}

func TestMapAxis_AsymmetricCenter(t *testing.T) {
	// 中点偏移时两侧斜率不同
	assert.Equal(t, 1100, MapAxis(-0.5, false, 1000, 1200, 2000, 1))
	assert.Equal(t, 1600, MapAxis(0.5, false, 1000, 1200, 2000, 1))
}

func TestMapAxis_RoundHalfAwayFromZero(t *testing.T) {
	// 1500 + 0.001*500 = 1500.5 -> 1501
	assert.Equal(t, 1501, MapAxis(0.001, false, 1000, 1500, 2000, 1))
	// 1500 - 0.001*500 = 1499.5 -> 1500（远离零）
	assert.Equal(t, 1500, MapAxis(-0.001, false, 1000, 1500, 2000, 1))
}

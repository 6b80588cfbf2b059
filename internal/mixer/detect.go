package mixer

import "math"

// AxisDetectThreshold 学习模式下轴偏移超过该值才视为映射
const AxisDetectThreshold = 0.35

// DetectMapping 对比基线与当前采样，找出新按下的按键（优先）或偏移最大的轴
func DetectMapping(baseAxes []float64, baseButtons []int, axes []float64, buttons []int) (Source, int, bool) {
	for i := 0; i < len(buttons) && i < len(baseButtons); i++ {
		if baseButtons[i] == 0 && buttons[i] != 0 {
			return SourceButton, i, true
		}
	}
	best, bestDelta := -1, 0.0
	for i := 0; i < len(axes) && i < len(baseAxes); i++ {
		if d := math.Abs(axes[i] - baseAxes[i]); d > bestDelta {
			best, bestDelta = i, d
		}
	}
	if best >= 0 && bestDelta > AxisDetectThreshold {
		return SourceAxis, best, true
	}
	return SourceNone, 0, false
}

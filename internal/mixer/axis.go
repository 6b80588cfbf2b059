package mixer

import "math"

// snapEpsilon 距离满舵小于该值时吸附到 ±1，消除摇杆端点抖动
const snapEpsilon = 0.002

// MapAxis 将 [-1,1] 轴值映射到 [mn,mx]，中点为 ct
// 顺序：反向、限幅、端点吸附、expo 曲线、分段线性、四舍五入（远离零）、限幅
func MapAxis(val float64, invert bool, mn, ct, mx int, expo float64) int {
	v := val
	if math.IsNaN(v) {
		v = 0
	}
	if invert {
		v = -v
	}
	v = math.Max(-1, math.Min(1, v))
	if math.Abs(math.Abs(v)-1) < snapEpsilon {
		v = math.Copysign(1, v)
	}
	if expo > 0 && expo != 1 {
		v = math.Copysign(math.Pow(math.Abs(v), expo), v)
	}

	var outf float64
	if v >= 0 {
		outf = float64(ct) + v*float64(mx-ct)
	} else {
		outf = float64(ct) + v*float64(ct-mn)
	}
	out := int(math.Round(outf))
	return max(mn, min(mx, out))
}

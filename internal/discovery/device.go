package discovery

import (
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/taoyao-code/elrs-feeder/internal/params"
)

// State 设备发现/加载状态
type State string

const (
	StateUnknown    State = "unknown"
	StatePinged     State = "pinged"
	StateDiscovered State = "discovered"
	StateLoading    State = "loading"
	StateLoaded     State = "loaded"
)

// Device 已发现设备及其字段注册表；进程运行期间只会被重置，不会被单独删除
type Device struct {
	params.DeviceInfo
	Fields  map[byte]*params.Field
	Fetched map[byte]struct{}
	Loaded  bool

	// discoveryEmit 限制重复 DEVICE_INFO 的发现事件频率，按引擎时钟计
	discoveryEmit *rate.Limiter
}

func newDevice(info params.DeviceInfo, cooldown time.Duration) *Device {
	d := &Device{
		DeviceInfo:    info,
		discoveryEmit: rate.NewLimiter(rate.Every(cooldown), 1),
	}
	d.reset()
	return d
}

// reset 清空字段与加载状态
func (d *Device) reset() {
	d.Fields = make(map[byte]*params.Field)
	d.Fetched = make(map[byte]struct{})
	d.Loaded = false
}

// IsTransmitter 仅 TX 模块会加载参数
func (d *Device) IsTransmitter() bool {
	return isTransmitter(d.Address)
}

// DeviceSnapshot 设备只读副本（跨协程传递）
type DeviceSnapshot struct {
	params.DeviceInfo
	State   State           `json:"state"`
	Loaded  bool            `json:"loaded"`
	Fetched int             `json:"fetched"`
	Fields  []*params.Field `json:"fields"`
}

func (d *Device) snapshot(state State) DeviceSnapshot {
	s := DeviceSnapshot{
		DeviceInfo: d.DeviceInfo,
		State:      state,
		Loaded:     d.Loaded,
		Fetched:    len(d.Fetched),
		Fields:     make([]*params.Field, 0, len(d.Fields)),
	}
	for _, f := range d.Fields {
		cp := *f
		s.Fields = append(s.Fields, &cp)
	}
	sort.Slice(s.Fields, func(i, j int) bool { return s.Fields[i].ID < s.Fields[j].ID })
	return s
}

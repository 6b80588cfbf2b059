package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// LinkMetrics 串口链路与参数引擎指标
// 所有方法对 nil 接收者安全，便于测试时不注册指标
type LinkMetrics struct {
	FramesReceived  *prometheus.CounterVec // labels: type
	FramesSent      *prometheus.CounterVec // labels: kind=channels|command
	BytesReceived   prometheus.Counter
	ResyncBytes     prometheus.Counter
	CommandSlotBusy prometheus.Counter
	ChannelsInhibit prometheus.Counter
	EventsDropped   *prometheus.CounterVec // labels: type
	EngineOps       *prometheus.CounterVec // labels: op, status
	Reconnects      *prometheus.CounterVec // labels: result=ok|error
	Connected       prometheus.Gauge
	TxConnected     prometheus.Gauge
	SendIntervalUS  prometheus.Gauge
	DevicesLoaded   prometheus.Gauge
	MixerTicks      prometheus.Counter
}

// NewLinkMetrics 注册并返回链路指标
func NewLinkMetrics(reg prometheus.Registerer) *LinkMetrics {
	m := &LinkMetrics{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crsf_frames_received_total",
			Help: "CRSF frames received by frame type.",
		}, []string{"type"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crsf_frames_sent_total",
			Help: "CRSF frames written to the serial port.",
		}, []string{"kind"}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serial_bytes_received_total",
			Help: "Total bytes read from the serial port.",
		}),
		ResyncBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crsf_resync_bytes_total",
			Help: "Bytes discarded while resynchronising the CRSF stream.",
		}),
		CommandSlotBusy: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crsf_command_slot_busy_total",
			Help: "Command frames refused because the single slot was occupied.",
		}),
		ChannelsInhibit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crsf_channels_inhibited_total",
			Help: "Transmit ticks skipped because no recent channel input.",
		}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "link_events_dropped_total",
			Help: "Outbound events dropped because the event buffer was full.",
		}, []string{"type"}),
		EngineOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "discovery_operations_total",
			Help: "Discovery and parameter engine operations by status.",
		}, []string{"op", "status"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serial_connect_attempts_total",
			Help: "Serial port open attempts.",
		}, []string{"result"}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "serial_connected",
			Help: "1 when the serial port is open.",
		}),
		TxConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tx_connected",
			Help: "1 while timing sync frames arrive from the TX module.",
		}),
		SendIntervalUS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crsf_send_interval_microseconds",
			Help: "Current transmit tick interval.",
		}),
		DevicesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "devices_loaded",
			Help: "Devices whose parameters are fully loaded.",
		}),
		MixerTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mixer_ticks_total",
			Help: "Controller samples mixed into channel values.",
		}),
	}
	reg.MustRegister(m.FramesReceived, m.FramesSent, m.BytesReceived, m.ResyncBytes,
		m.CommandSlotBusy, m.ChannelsInhibit, m.EventsDropped, m.EngineOps, m.Reconnects,
		m.Connected, m.TxConnected, m.SendIntervalUS, m.DevicesLoaded, m.MixerTicks)
	return m
}

func (m *LinkMetrics) FrameReceived(typeName string) {
	if m != nil {
		m.FramesReceived.WithLabelValues(typeName).Inc()
	}
}

func (m *LinkMetrics) FrameSent(kind string) {
	if m != nil {
		m.FramesSent.WithLabelValues(kind).Inc()
	}
}

func (m *LinkMetrics) AddBytesReceived(n int) {
	if m != nil {
		m.BytesReceived.Add(float64(n))
	}
}

func (m *LinkMetrics) AddResync(n int) {
	if m != nil && n > 0 {
		m.ResyncBytes.Add(float64(n))
	}
}

func (m *LinkMetrics) SlotBusy() {
	if m != nil {
		m.CommandSlotBusy.Inc()
	}
}

func (m *LinkMetrics) Inhibited() {
	if m != nil {
		m.ChannelsInhibit.Inc()
	}
}

func (m *LinkMetrics) EventDropped(eventType string) {
	if m != nil {
		m.EventsDropped.WithLabelValues(eventType).Inc()
	}
}

// RecordEngineOp 适配 discovery.Observer
func (m *LinkMetrics) RecordEngineOp(op, status string) {
	if m != nil {
		m.EngineOps.WithLabelValues(op, status).Inc()
	}
}

func (m *LinkMetrics) ConnectAttempt(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.Reconnects.WithLabelValues("ok").Inc()
	} else {
		m.Reconnects.WithLabelValues("error").Inc()
	}
}

func (m *LinkMetrics) SetConnected(v bool) {
	if m != nil {
		m.Connected.Set(boolGauge(v))
	}
}

func (m *LinkMetrics) SetTxConnected(v bool) {
	if m != nil {
		m.TxConnected.Set(boolGauge(v))
	}
}

func (m *LinkMetrics) SetSendInterval(us int) {
	if m != nil {
		m.SendIntervalUS.Set(float64(us))
	}
}

func (m *LinkMetrics) SetDevicesLoaded(n int) {
	if m != nil {
		m.DevicesLoaded.Set(float64(n))
	}
}

func (m *LinkMetrics) MixerTick() {
	if m != nil {
		m.MixerTicks.Inc()
	}
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

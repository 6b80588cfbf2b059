// Package api 本地控制 API：链路状态、设备参数、通道配置与摇杆输入
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/elrs-feeder/internal/discovery"
	"github.com/taoyao-code/elrs-feeder/internal/event"
	"github.com/taoyao-code/elrs-feeder/internal/link"
	"github.com/taoyao-code/elrs-feeder/internal/metrics"
	"github.com/taoyao-code/elrs-feeder/internal/mixer"
)

// Controller 链路控制面（由 *link.Link 实现）
type Controller interface {
	Status() link.Status
	LinkStatsFresh(now time.Time) bool
	SendChannels(us []int)
	Devices(ctx context.Context) ([]discovery.DeviceSnapshot, error)
	Device(ctx context.Context, addr byte) (discovery.DeviceSnapshot, bool, error)
	EngineStatus(ctx context.Context) (discovery.Status, error)
	RequestDeviceReload(ctx context.Context, device byte) error
	RequestParameterRead(ctx context.Context, device, fid byte) error
	WriteParameter(ctx context.Context, device, fid byte, value float64) error
	PendingWrite(ctx context.Context, fid byte) (discovery.PendingWrite, bool, error)
	Reconnect(ctx context.Context, open link.Opener) error
	ResetTxDisconnected(ctx context.Context) error
}

// History 事件历史（Redis 输出启用时可用）
type History interface {
	History(ctx context.Context, n int64) ([]*event.Event, error)
}

// OpenerFactory 按端口与波特率构造串口打开函数
type OpenerFactory func(port string, baud int) link.Opener

// Handler 控制 API 处理器
type Handler struct {
	ctrl     Controller
	table    *mixer.Table
	store    *event.Store
	history  History
	openerOf OpenerFactory
	metrics  *metrics.LinkMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// Option Handler 可选依赖
type Option func(*Handler)

// WithHistory 启用 /api/events
func WithHistory(h History) Option { return func(x *Handler) { x.history = h } }

// WithOpenerFactory 允许 reconnect 请求切换端口/波特率
func WithOpenerFactory(f OpenerFactory) Option { return func(x *Handler) { x.openerOf = f } }

// WithMetrics 记录混控计算次数
func WithMetrics(m *metrics.LinkMetrics) Option { return func(x *Handler) { x.metrics = m } }

// NewHandler 创建控制 API 处理器
func NewHandler(ctrl Controller, table *mixer.Table, store *event.Store, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		ctrl:   ctrl,
		table:  table,
		store:  store,
		logger: logger.With(zap.String("component", "api")),
		now:    time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// parseByte 解析路径中的地址/字段号，支持 0xEE 与 238 两种写法
func parseByte(c *gin.Context, name string) (byte, bool) {
	v, err := strconv.ParseUint(c.Param(name), 0, 8)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s: %q", name, c.Param(name))})
		return 0, false
	}
	return byte(v), true
}

// fail 将链路/引擎错误映射为 HTTP 状态码
func (h *Handler) fail(c *gin.Context, op string, err error) {
	code := http.StatusBadRequest
	switch {
	case errors.Is(err, discovery.ErrUnknownDevice):
		code = http.StatusNotFound
	case errors.Is(err, discovery.ErrCommandBusy):
		code = http.StatusConflict
	case errors.Is(err, link.ErrNotConnected), errors.Is(err, link.ErrClosed):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		code = http.StatusGatewayTimeout
	}
	if code >= http.StatusInternalServerError {
		h.logger.Warn("api request failed", zap.String("op", op), zap.Error(err))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/elrs-feeder/internal/api/middleware"
	"github.com/taoyao-code/elrs-feeder/internal/discovery"
	"github.com/taoyao-code/elrs-feeder/internal/event"
	"github.com/taoyao-code/elrs-feeder/internal/link"
	"github.com/taoyao-code/elrs-feeder/internal/mixer"
	"github.com/taoyao-code/elrs-feeder/internal/params"
)

type fakeController struct {
	status   link.Status
	devices  map[byte]discovery.DeviceSnapshot
	sent     [][]int
	reads    [][2]byte
	reloads  []byte
	writes   []float64
	writeErr error
	opener   link.Opener
	reconn   int
	resetTx  int
}

func newFakeController() *fakeController {
	return &fakeController{
		status: link.Status{Connected: true, TxConnected: true, Session: "s1", SendIntervalUS: 4000},
		devices: map[byte]discovery.DeviceSnapshot{
			0xEE: {DeviceInfo: params.DeviceInfo{Address: 0xEE, Name: "ELRS TX", ParamCount: 3}, Loaded: true},
		},
	}
}

func (f *fakeController) Status() link.Status            { return f.status }
func (f *fakeController) LinkStatsFresh(time.Time) bool { return true }
func (f *fakeController) SendChannels(us []int)         { f.sent = append(f.sent, us) }

func (f *fakeController) Devices(context.Context) ([]discovery.DeviceSnapshot, error) {
	out := make([]discovery.DeviceSnapshot, 0, len(f.devices))
	for _, d := range f.devices {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeController) Device(_ context.Context, addr byte) (discovery.DeviceSnapshot, bool, error) {
	d, ok := f.devices[addr]
	return d, ok, nil
}

func (f *fakeController) EngineStatus(context.Context) (discovery.Status, error) {
	return discovery.Status{Triggered: true, Devices: len(f.devices)}, nil
}

func (f *fakeController) RequestDeviceReload(_ context.Context, device byte) error {
	if _, ok := f.devices[device]; !ok {
		return discovery.ErrUnknownDevice
	}
	f.reloads = append(f.reloads, device)
	return nil
}

func (f *fakeController) RequestParameterRead(_ context.Context, device, fid byte) error {
	if _, ok := f.devices[device]; !ok {
		return discovery.ErrUnknownDevice
	}
	f.reads = append(f.reads, [2]byte{device, fid})
	return nil
}

func (f *fakeController) WriteParameter(_ context.Context, _, _ byte, value float64) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, value)
	return nil
}

func (f *fakeController) PendingWrite(_ context.Context, fid byte) (discovery.PendingWrite, bool, error) {
	if len(f.writes) == 0 {
		return discovery.PendingWrite{}, false, nil
	}
	return discovery.PendingWrite{FieldID: fid, Value: int64(f.writes[len(f.writes)-1])}, true, nil
}

func (f *fakeController) Reconnect(_ context.Context, open link.Opener) error {
	f.reconn++
	f.opener = open
	return nil
}

func (f *fakeController) ResetTxDisconnected(context.Context) error {
	f.resetTx++
	return nil
}

type fakeHistory struct{ events []*event.Event }

func (h fakeHistory) History(_ context.Context, n int64) ([]*event.Event, error) {
	if int64(len(h.events)) > n {
		return h.events[:n], nil
	}
	return h.events, nil
}

func setup(t *testing.T, cfg RouteConfig, opts ...Option) (*gin.Engine, *fakeController, *mixer.Table) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctrl := newFakeController()
	table := mixer.NewTable(nil)
	h := NewHandler(ctrl, table, event.NewStore(), zap.NewNop(), opts...)
	r := gin.New()
	RegisterRoutes(r, h, cfg, zap.NewNop())
	return r, ctrl, table
}

func do(r http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestStatusAndTelemetry(t *testing.T) {
	r, _, _ := setup(t, RouteConfig{})

	rr := do(r, http.MethodGet, "/api/status", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, true, body["link_stats_fresh"])
	assert.Equal(t, "s1", body["link"].(map[string]any)["session"])
	assert.Equal(t, true, body["discovery"].(map[string]any)["triggered"])

	rr = do(r, http.MethodGet, "/api/telemetry", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, decode(t, rr), "state")
}

func TestDevices(t *testing.T) {
	r, ctrl, _ := setup(t, RouteConfig{})

	rr := do(r, http.MethodGet, "/api/devices", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["devices"], 1)

	rr = do(r, http.MethodGet, "/api/devices/0xEE", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ELRS TX", decode(t, rr)["device"].(map[string]any)["name"])

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/devices/200", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/devices/zz", "", "").Code)

	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/api/devices/238/reload", "", "").Code)
	assert.Equal(t, []byte{0xEE}, ctrl.reloads)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/devices/0xC8/reload", "", "").Code)

	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/api/devices/0xEE/fields/5/read", "", "").Code)
	assert.Equal(t, [][2]byte{{0xEE, 5}}, ctrl.reads)
}

func TestWriteField(t *testing.T) {
	r, ctrl, _ := setup(t, RouteConfig{})

	rr := do(r, http.MethodPut, "/api/devices/0xEE/fields/3", "application/json", `{"value": 2}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "pending", body["status"])
	assert.EqualValues(t, 2, body["pending"].(map[string]any)["value"])
	assert.Equal(t, []float64{2}, ctrl.writes)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/api/devices/0xEE/fields/3", "application/json", `{}`).Code)

	ctrl.writeErr = discovery.ErrCommandBusy
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPut, "/api/devices/0xEE/fields/3", "application/json", `{"value": 1}`).Code)
	ctrl.writeErr = link.ErrNotConnected
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodPut, "/api/devices/0xEE/fields/3", "application/json", `{"value": 1}`).Code)
	ctrl.writeErr = errors.New("encode field 3: value 9 above max 4")
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/api/devices/0xEE/fields/3", "application/json", `{"value": 9}`).Code)
}

func TestInput(t *testing.T) {
	r, ctrl, table := setup(t, RouteConfig{})
	require.NoError(t, table.Replace([]mixer.RowConfig{
		{Name: "Thr", Src: mixer.SourceAxis, Index: 0},
		{Name: "Arm", Src: mixer.SourceButton, Index: 1},
	}))

	rr := do(r, http.MethodPost, "/api/input", "application/json", `{"axes":[1.0],"buttons":[0,1]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, ctrl.sent, 1)
	assert.Equal(t, []int{2000, 2000}, ctrl.sent[0])

	rr = do(r, http.MethodPost, "/api/input", "application/json", `{"channels":[1100,1200]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []int{1100, 1200}, ctrl.sent[1])

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/input", "application/json", `{`).Code)
}

func TestInputRateLimit(t *testing.T) {
	r, _, _ := setup(t, RouteConfig{InputRate: 0.001, InputBurst: 1})

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/input", "application/json", `{"axes":[]}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/api/input", "application/json", `{"axes":[]}`).Code)
}

func TestChannels(t *testing.T) {
	r, _, table := setup(t, RouteConfig{})

	rr := do(r, http.MethodGet, "/api/channels", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["channels"], 16)

	rr = do(r, http.MethodGet, "/api/channels?format=yaml", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "channels:")
	assert.Contains(t, rr.Header().Get("Content-Type"), "yaml")

	yamlBody := "channels:\n  - name: Roll\n    src: axis\n    idx: 3\n"
	rr = do(r, http.MethodPut, "/api/channels", "application/yaml", yamlBody)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, table.Rows(), 1)
	assert.Equal(t, "Roll", table.Rows()[0].Name)
	assert.Equal(t, 3, table.Rows()[0].Index)

	rr = do(r, http.MethodPut, "/api/channels", "application/json", `{"channels":[{"name":"A","src":"button","idx":2},{"name":"B"}]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, table.Rows(), 2)

	rr = do(r, http.MethodPut, "/api/channels", "application/json", `{"channels":[]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Len(t, table.Rows(), 2)

	// 非法 JSON 与缺少 channels 字段均被拒绝，现有配置不变
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/api/channels", "application/json", `{"channels":[`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/api/channels", "application/json", `{"rows":[{"name":"A"}]}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/api/channels", "application/yaml", "channels: [").Code)
	assert.Len(t, table.Rows(), 2)
	assert.Equal(t, "A", table.Rows()[0].Name)
}

func TestDetectMapping(t *testing.T) {
	r, _, _ := setup(t, RouteConfig{})

	rr := do(r, http.MethodPost, "/api/channels/detect", "application/json",
		`{"base_axes":[0,0],"base_buttons":[0,0,0],"axes":[0,0],"buttons":[0,0,1]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, true, body["detected"])
	assert.Equal(t, "button", body["src"])
	assert.EqualValues(t, 2, body["idx"])

	rr = do(r, http.MethodPost, "/api/channels/detect", "application/json",
		`{"base_axes":[0],"base_buttons":[0],"axes":[0.01],"buttons":[0]}`)
	assert.Equal(t, false, decode(t, rr)["detected"])
}

func TestLinkControl(t *testing.T) {
	var gotPort string
	var gotBaud int
	factory := func(port string, baud int) link.Opener {
		gotPort, gotBaud = port, baud
		return func(context.Context) (link.Transport, error) { return nil, errors.New("unused") }
	}
	r, ctrl, _ := setup(t, RouteConfig{}, WithOpenerFactory(factory))

	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/link/reconnect", "", "").Code)
	assert.Equal(t, 1, ctrl.reconn)
	assert.Nil(t, ctrl.opener)

	rr := do(r, http.MethodPost, "/api/link/reconnect", "application/json", `{"port":"/dev/ttyACM0","baud":921600}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotNil(t, ctrl.opener)
	assert.Equal(t, "/dev/ttyACM0", gotPort)
	assert.Equal(t, 921600, gotBaud)

	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/api/link/reset-tx", "", "").Code)
	assert.Equal(t, 1, ctrl.resetTx)
}

func TestEvents(t *testing.T) {
	r, _, _ := setup(t, RouteConfig{})
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/events", "", "").Code)

	hist := fakeHistory{events: []*event.Event{event.New(event.TypeDebug), event.New(event.TypeConnection)}}
	r, _, _ = setup(t, RouteConfig{}, WithHistory(hist))
	rr := do(r, http.MethodGet, "/api/events?n=1", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["events"], 1)
}

func TestAuth(t *testing.T) {
	cfg := RouteConfig{Auth: middleware.AuthConfig{Enabled: true, APIKeys: []string{"local-secret-key"}}}
	r, _, _ := setup(t, cfg)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/status", "", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-API-Key", "wrong")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer local-secret-key")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	r, _, _ := setup(t, RouteConfig{CORS: true})
	rr := do(r, http.MethodGet, "/api/status", "", "")
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

package di

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/turf-booking/internal/dto"
	"github.com/prohmpiriya/turf-booking/internal/gateway"
	"github.com/prohmpiriya/turf-booking/internal/handler"
	"github.com/prohmpiriya/turf-booking/pkg/config"
)

const (
	testKeySecret   = "key-secret"
	testAdminSecret = "admin-secret"
)

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Name: "turf-booking", Environment: "test"},
		Server:  config.ServerConfig{Port: 8080, RequestTimeout: 5 * time.Second},
		Storage: config.StorageConfig{Driver: "memory"},
		Booking: config.BookingConfig{
			TurfID:          "main",
			Timezone:        "Asia/Kolkata",
			OpenHour:        6,
			CloseHour:       24,
			HoldTTL:         10 * time.Minute,
			PricingCacheTTL: time.Second,
		},
		Pricing: config.PricingConfig{WeekdayRate: 1200, WeekendRate: 1600},
		Payment: config.PaymentConfig{Provider: "mock", KeyID: "key-id", KeySecret: testKeySecret, Currency: "INR"},
		Admin:   config.AdminConfig{Secret: testAdminSecret},
		Events:  config.EventsConfig{Driver: "none"},
		OTel:    config.OTelConfig{ServiceName: "turf-booking-test"},
		Worker: config.WorkerConfig{
			ReaperInterval:     time.Minute,
			ReaperBatchSize:    10,
			ReconcileInterval:  time.Minute,
			ReconcileBatchSize: 10,
			ReconcileMinAge:    2 * time.Minute,
		},
	}
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
}

func (a apiClient) call(method, path string, body interface{}, admin bool) (int, json.RawMessage) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Admin-Secret", testAdminSecret)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env.Data
}

func TestContainer_BookingFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	cfg := testConfig()

	infra, err := NewInfrastructure(ctx, cfg)
	require.NoError(t, err)
	defer infra.Close()
	assert.Nil(t, infra.DB)
	assert.Nil(t, infra.Redis)

	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	now := time.Date(2025, 6, 6, 10, 0, 0, 0, ist)

	c, err := NewContainer(&ContainerConfig{Infra: infra, Config: cfg, Clock: func() time.Time { return now }})
	require.NoError(t, err)

	routerCfg := c.RouterConfig(cfg)
	assert.Nil(t, routerCfg.Idempotency)
	api := apiClient{t: t, router: handler.NewRouter(c.Handlers, routerCfg)}

	reserve := dto.ReserveRequest{
		Date:          "2025-06-07",
		SlotIDs:       []string{"slot-18"},
		CustomerName:  "Asha",
		CustomerPhone: "9876543210",
	}

	code, data := api.call(http.MethodPost, "/api/v1/bookings", reserve, false)
	require.Equal(t, http.StatusCreated, code)
	var reserved dto.ReserveResponse
	require.NoError(t, json.Unmarshal(data, &reserved))
	assert.Equal(t, int64(1600), reserved.Amount)

	code, _ = api.call(http.MethodPost, "/api/v1/bookings", reserve, false)
	assert.Equal(t, http.StatusConflict, code)

	code, data = api.call(http.MethodPost, "/api/v1/bookings/"+reserved.BookingID+"/order", nil, false)
	require.Equal(t, http.StatusOK, code)
	var order dto.CreateOrderResponse
	require.NoError(t, json.Unmarshal(data, &order))
	require.NotEmpty(t, order.OrderID)

	confirm := dto.ConfirmRequest{
		OrderID:   order.OrderID,
		PaymentID: "pay_1",
		Signature: gateway.Sign(testKeySecret, order.OrderID, "pay_1"),
	}
	code, data = api.call(http.MethodPost, "/api/v1/bookings/"+reserved.BookingID+"/confirm", confirm, false)
	require.Equal(t, http.StatusOK, code)
	var confirmed dto.ConfirmResponse
	require.NoError(t, json.Unmarshal(data, &confirmed))
	assert.Equal(t, "confirmed", confirmed.Status)

	code, data = api.call(http.MethodGet, "/api/v1/slots?date=2025-06-07", nil, false)
	require.Equal(t, http.StatusOK, code)
	var avail dto.AvailabilityResponse
	require.NoError(t, json.Unmarshal(data, &avail))
	assert.Contains(t, avail.UnavailableSlots, "slot-18")

	code, data = api.call(http.MethodPost, "/api/v1/admin/bookings/"+reserved.BookingID+"/release", nil, true)
	require.Equal(t, http.StatusOK, code)
	var released dto.ReleaseResponse
	require.NoError(t, json.Unmarshal(data, &released))
	assert.Equal(t, "released", released.Booking.Status)
	assert.NotEmpty(t, released.Warning)

	code, data = api.call(http.MethodGet, "/api/v1/slots?date=2025-06-07", nil, false)
	require.Equal(t, http.StatusOK, code)
	avail = dto.AvailabilityResponse{}
	require.NoError(t, json.Unmarshal(data, &avail))
	assert.NotContains(t, avail.UnavailableSlots, "slot-18")
}

func TestContainer_HealthReportsOptionalComponents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	infra, err := NewInfrastructure(context.Background(), cfg)
	require.NoError(t, err)
	defer infra.Close()

	c, err := NewContainer(&ContainerConfig{Infra: infra, Config: cfg})
	require.NoError(t, err)
	router := handler.NewRouter(c.Handlers, c.RouterConfig(cfg))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp handler.ReadyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not configured", resp.Components["postgres"])
	assert.Equal(t, "not configured", resp.Components["redis"])
}

func TestNewInfrastructure_UnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Driver = "cassandra"

	_, err := NewInfrastructure(context.Background(), cfg)
	assert.Error(t, err)
}

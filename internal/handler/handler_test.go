package handler

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/turf-booking/pkg/response"
)

const testAdminSecret = "test-admin-secret"

type testServices struct {
	bookings *MockBookingService
	pricing  *MockPricingService
	payments *MockPaymentService
}

func newTestServices() *testServices {
	return &testServices{
		bookings: &MockBookingService{},
		pricing:  &MockPricingService{},
		payments: &MockPaymentService{},
	}
}

func (s *testServices) router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &Handlers{
		Health:  NewHealthHandler(nil),
		Slot:    NewSlotHandler(s.bookings, s.pricing),
		Booking: NewBookingHandler(s.bookings, s.payments),
		Webhook: NewWebhookHandler(s.payments),
		Admin:   NewAdminHandler(s.bookings, s.pricing, s.payments, testAdminSecret),
	}
	return NewRouter(h, &RouterConfig{ServiceName: "turf-api-test", AdminSecret: testAdminSecret})
}

type testRequest struct {
	method  string
	path    string
	body    interface{}
	headers map[string]string
}

func do(t *testing.T, router *gin.Engine, r testRequest) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	switch v := r.body.(type) {
	case nil:
	case string:
		body.WriteString(v)
	case []byte:
		body.Write(v)
	default:
		require.NoError(t, json.NewEncoder(&body).Encode(v))
	}

	req := httptest.NewRequest(r.method, r.path, &body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// decodeData re-decodes the envelope's data field into dst
func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func details(t *testing.T, resp response.Response) map[string]interface{} {
	t.Helper()
	require.NotNil(t, resp.Error)
	d, ok := resp.Error.Details.(map[string]interface{})
	require.True(t, ok, "details: %#v", resp.Error.Details)
	return d
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Secret": testAdminSecret}
}

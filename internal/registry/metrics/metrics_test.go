package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMiddleware_CountsByRoute(t *testing.T) {
	m, err := New("test")
	require.NoError(t, err)

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/api/mail-in/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/api/mail-in/1", "/api/mail-in/2", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/api/mail-in/:id", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
}

func TestMailListenerAndErrors(t *testing.T) {
	m, err := New("")
	require.NoError(t, err)

	listener := m.MailListener()
	listener(context.Background(), registry.MailEvent{Direction: registry.DirectionIn, Op: registry.OpCreate, MailID: 1})
	listener(context.Background(), registry.MailEvent{Direction: registry.DirectionIn, Op: registry.OpCreate, MailID: 2})

	m.ObserveError(registry.NewConflictError("X", "x"))
	m.ObserveError(errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.mailOperations.WithLabelValues("IN", "create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("internal")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m, err := New("mailregistry")
	require.NoError(t, err)
	m.MailListener()(context.Background(), registry.MailEvent{Direction: registry.DirectionOut, Op: registry.OpDelete})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mailregistry_mail_operations_total{kind="OUT",op="delete"} 1`)
}

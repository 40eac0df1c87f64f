package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRequest(t *testing.T, opts Options, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, "/students", nil)
	require.NoError(t, err)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	c.Request = req
	New(opts)(c)
	return w
}

func TestCORSDefaults(t *testing.T) {
	w := runRequest(t, Options{}, http.MethodGet, "http://app.school.test")

	assert.Equal(t, "http://app.school.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestCORSConfiguredMethodsAndHeaders(t *testing.T) {
	opts := Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization"},
	}
	w := runRequest(t, opts, http.MethodGet, "")

	assert.Equal(t, "GET, POST", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Authorization", w.Header().Get("Access-Control-Allow-Headers"))
}

func TestCORSRejectsUnlistedOrigin(t *testing.T) {
	opts := Options{AllowedOrigins: []string{"http://app.school.test"}}
	w := runRequest(t, opts, http.MethodGet, "http://evil.test")

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	w := runRequest(t, Options{}, http.MethodOptions, "http://app.school.test")

	assert.Equal(t, http.StatusNoContent, w.Code)
}

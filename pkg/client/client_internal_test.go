package client

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	c := New("")
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)

	c = New("http://example.test/api/", WithTimeout(time.Second))
	assert.Equal(t, "http://example.test/api", c.baseURL)
	assert.Equal(t, time.Second, c.httpClient.Timeout)
}

func TestAPIError_Error(t *testing.T) {
	e := newAPIError(http.StatusConflict, []byte(`{"error":"Session already completed"}`))
	assert.Equal(t, "agentops: status 409: Session already completed", e.Error())

	e = newAPIError(http.StatusBadGateway, []byte("upstream down"))
	assert.Equal(t, "agentops: status 502: upstream down", e.Error())
}

func TestSessionQuery_KeepsFractionalSeconds(t *testing.T) {
	to := time.Date(2024, 1, 1, 0, 0, 0, 500_000_000, time.UTC)
	v := SessionQuery{From: to.Add(-time.Microsecond), To: to}.values()
	assert.Equal(t, "2024-01-01T00:00:00.5Z", v.Get("to"))
	assert.Equal(t, "2024-01-01T00:00:00.499999Z", v.Get("from"))
}

package shared

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slowServer(extend time.Duration) *httptest.Server {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Same wrapper the request logger installs.
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		ExtendWriteDeadline(ww, extend)
		time.Sleep(200 * time.Millisecond)
		_, _ = io.WriteString(ww, "done")
	})
	srv := httptest.NewUnstartedServer(h)
	srv.Config.WriteTimeout = 50 * time.Millisecond
	srv.Start()
	return srv
}

func TestExtendWriteDeadline(t *testing.T) {
	srv := slowServer(2 * time.Second)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "done", string(body))
}

func TestWriteTimeoutWithoutExtension(t *testing.T) {
	srv := slowServer(0)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err == nil {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.NotEqual(t, "done", string(body))
	}
}

func TestExtendWriteDeadlineOnRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() { ExtendWriteDeadline(rec, time.Minute) })
}

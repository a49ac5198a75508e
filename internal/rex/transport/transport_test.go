package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransport(t *testing.T, h http.HandlerFunc, opts ...func(*Options)) (*HTTPTransport, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	o := Options{BaseURL: srv.URL + "/v1/rex"}
	for _, f := range opts {
		f(&o)
	}
	tr, err := New(o)
	require.NoError(t, err)
	return tr, srv
}

func TestDo_SendsJSONAndBearer(t *testing.T) {
	var gotPath, gotAuth, gotCT string
	var gotBody map[string]any

	tr, _ := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotCT = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_, _ = w.Write([]byte(`{"result":{"rows":[],"total":0}}`))
	})

	raw, err := tr.Do(context.Background(), http.MethodPost, "listings/search", map[string]any{"limit": 2}, "T1")
	require.NoError(t, err)

	assert.JSONEq(t, `{"result":{"rows":[],"total":0}}`, string(raw))
	assert.Equal(t, "/v1/rex/listings/search", gotPath)
	assert.Equal(t, "Bearer T1", gotAuth)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, float64(2), gotBody["limit"])
}

func TestDo_NoTokenNoAuthorizationHeader(t *testing.T) {
	var hadAuth bool
	tr, _ := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		_, hadAuth = r.Header["Authorization"]
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := tr.Do(context.Background(), http.MethodPost, LoginPath, nil, "")
	require.NoError(t, err)
	assert.False(t, hadAuth)
}

func TestDo_Classification(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		status   int
		body     string
		wantErr  error
		wantCode int
	}{
		{name: "401 on data path", path: "listings/search", status: 401, wantErr: ErrUnauthorized},
		{name: "401 on login path", path: LoginPath, status: 401, wantErr: ErrServer, wantCode: 401},
		{name: "500", path: "listings/search", status: 500, body: "oops", wantErr: ErrServer, wantCode: 500},
		{name: "404", path: "listings/read", status: 404, wantErr: ErrServer, wantCode: 404},
		{name: "invalid json", path: "listings/search", status: 200, body: "<html>", wantErr: ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _ := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			raw, err := tr.Do(context.Background(), http.MethodPost, tt.path, nil, "T")
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, raw)

			if tt.wantCode != 0 {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, tt.wantCode, se.StatusCode)
			}
		})
	}
}

func TestDo_NetworkErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	tr, err := New(Options{BaseURL: base})
	require.NoError(t, err)

	_, err = tr.Do(context.Background(), http.MethodGet, "x", nil, "")
	require.ErrorIs(t, err, ErrTransport)
}

func TestDo_EncodeErrorIsTransport(t *testing.T) {
	tr, _ := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not be sent")
	})

	_, err := tr.Do(context.Background(), http.MethodPost, "x", map[string]any{"bad": make(chan int)}, "")
	require.ErrorIs(t, err, ErrTransport)
}

func TestDo_BreakerOpensOnServerErrorsOnly(t *testing.T) {
	var calls atomic.Int32
	var status atomic.Int32
	status.Store(http.StatusUnauthorized)

	tr, _ := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(int(status.Load()))
	}, func(o *Options) {
		o.BreakerFailures = 2
		o.BreakerTimeout = time.Hour
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := tr.Do(ctx, http.MethodGet, "x", nil, "T")
		require.ErrorIs(t, err, ErrUnauthorized)
	}
	require.Equal(t, int32(3), calls.Load(), "401s must not trip the breaker")

	status.Store(http.StatusBadGateway)
	for i := 0; i < 2; i++ {
		_, err := tr.Do(ctx, http.MethodGet, "x", nil, "T")
		require.ErrorIs(t, err, ErrServer)
	}

	_, err := tr.Do(ctx, http.MethodGet, "x", nil, "T")
	require.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, int32(5), calls.Load(), "open breaker short-circuits the request")
}

func TestDo_CancelledContext(t *testing.T) {
	tr, _ := newTransport(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}, func(o *Options) { o.RequestsPerSecond = 0.001 })

	ctx := context.Background()
	_, err := tr.Do(ctx, http.MethodGet, "x", nil, "")
	require.NoError(t, err)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = tr.Do(cctx, http.MethodGet, "x", nil, "")
	require.ErrorIs(t, err, ErrTransport)
}

func TestNew_RejectsRelativeBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "api/rex"})
	require.Error(t, err)
}

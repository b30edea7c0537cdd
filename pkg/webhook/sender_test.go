package webhook_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nodetasks/pkg/webhook"
)

func TestSender_Post(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	payload := []byte(`{"id":"t1"}`)

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		var gotBody, gotType, gotAgent, gotCustom string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			gotType = r.Header.Get("Content-Type")
			gotAgent = r.Header.Get("User-Agent")
			gotCustom = r.Header.Get("X-Custom")
			w.WriteHeader(http.StatusNoContent)
		}))
		t.Cleanup(srv.Close)

		s := webhook.NewSender(srv.Client(), time.Second)
		res, err := s.Post(ctx, srv.URL, payload, http.Header{"X-Custom": {"yes"}})
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, res.StatusCode)
		assert.Equal(t, `{"id":"t1"}`, gotBody)
		assert.Equal(t, "application/json", gotType)
		assert.Equal(t, webhook.UserAgent, gotAgent)
		assert.Equal(t, "yes", gotCustom)
	})

	t.Run("classifies status codes", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			status    int
			permanent bool
		}{
			{http.StatusBadRequest, true},
			{http.StatusNotFound, true},
			{http.StatusRequestTimeout, false},
			{http.StatusTooManyRequests, false},
			{http.StatusInternalServerError, false},
			{http.StatusBadGateway, false},
		}
		for _, tt := range tests {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope\nnot here"))
			}))

			res, err := webhook.NewSender(srv.Client(), time.Second).Post(ctx, srv.URL, payload, nil)
			srv.Close()

			require.Error(t, err, "status %d", tt.status)
			assert.Equal(t, tt.status, res.StatusCode)
			assert.ErrorIs(t, err, webhook.ErrDeliveryFailed)
			assert.Equal(t, tt.permanent, webhook.IsPermanent(err), "status %d", tt.status)
			assert.Equal(t, !tt.permanent, strings.Contains(err.Error(), webhook.ErrTemporaryFailure.Error()))
			assert.Contains(t, err.Error(), "nope not here")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(func() {
			close(release)
			srv.Close()
		})

		_, err := webhook.NewSender(srv.Client(), 20*time.Millisecond).Post(ctx, srv.URL, payload, nil)
		assert.ErrorIs(t, err, webhook.ErrTimeout)
		assert.False(t, webhook.IsPermanent(err))
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := webhook.NewSender(nil, time.Second).Post(ctx, url, payload, nil)
		assert.ErrorIs(t, err, webhook.ErrTemporaryFailure)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		s := webhook.NewSender(nil, 0)
		assert.Equal(t, 10*time.Second, s.Timeout())

		for _, target := range []string{"", "ftp://example.com", "http://", "://bad"} {
			_, err := s.Post(ctx, target, payload, nil)
			assert.ErrorIs(t, err, webhook.ErrInvalidURL, target)
		}

		_, err := s.Post(ctx, "https://example.com", nil, nil)
		assert.ErrorIs(t, err, webhook.ErrInvalidPayload)
	})
}

package modal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessVideo_SendsKeyAndToken(t *testing.T) {
	var got processRequest
	var auth, contentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, err := New(server.URL, "secret-token", time.Second)
	require.NoError(t, err)

	require.NoError(t, c.ProcessVideo(context.Background(), "abc/original.mp4"))
	assert.Equal(t, "abc/original.mp4", got.S3Key)
	assert.Equal(t, "Bearer secret-token", auth)
	assert.Equal(t, "application/json", contentType)
}

func TestProcessVideo_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Invalid or missing token"}`))
	}))
	defer server.Close()

	c, err := New(server.URL, "wrong", time.Second)
	require.NoError(t, err)

	err = c.ProcessVideo(context.Background(), "abc/original.mp4")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "Invalid or missing token")
}

func TestProcessVideo_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := New(url, "token", time.Second)
	require.NoError(t, err)
	assert.Error(t, c.ProcessVideo(context.Background(), "abc/original.mp4"))
}

func TestNew_RequiresEndpointAndToken(t *testing.T) {
	_, err := New("", "token", time.Second)
	assert.Error(t, err)

	_, err = New("http://localhost", "", time.Second)
	assert.Error(t, err)
}

package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolobok/dbadmin/internal/models"
)

func TestVerifyMatchesTrimmedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("  s3cret\n"))
	}))
	defer srv.Close()

	v := NewSecretVerifier(srv.URL, time.Second)

	ok, err := v.Verify(context.Background(), "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyWrongPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("s3cret"))
	}))
	defer srv.Close()

	v := NewSecretVerifier(srv.URL, time.Second)

	ok, err := v.Verify(context.Background(), "S3CRET")
	require.NoError(t, err)
	assert.False(t, ok, "comparison is byte-exact")
}

func TestVerifyNon2xxIsConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	v := NewSecretVerifier(srv.URL, time.Second)

	_, err := v.Verify(context.Background(), "s3cret")
	assert.ErrorIs(t, err, models.ErrConnectivity)
}

func TestVerifyUnreachableHost(t *testing.T) {
	v := NewSecretVerifier("http://127.0.0.1:1", 200*time.Millisecond)

	_, err := v.Verify(context.Background(), "s3cret")
	assert.ErrorIs(t, err, models.ErrConnectivity)
}

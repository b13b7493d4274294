package upload

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"chat-messaging-demo/backend/chat/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageHostUploadSuccess(t *testing.T) {
	var gotKey, gotImage string

	probe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer probe.Close()

	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotKey = r.PostFormValue("key")
		gotImage = r.PostFormValue("image")
		fmt.Fprintf(w, `{"success":true,"status":200,"data":{"url":"%s/raw","display_url":"%s/display"}}`, probe.URL, probe.URL)
	}))
	defer host.Close()

	p := NewImageHostProviderWith(host.URL, "test-key", host.Client(), probe.Client(), true, testLog())

	var fractions []float64
	att, err := p.Upload(context.Background(), File{Name: "a.png", Size: 3, Data: []byte("abc")},
		Options{UploaderID: "alice"}, func(pr Progress) { fractions = append(fractions, pr.Fraction) })
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("abc")), gotImage)
	// display_url is preferred over the raw url
	assert.Equal(t, probe.URL+"/display", att.URL)
	assert.Equal(t, "alice", att.UploadedBy)
	assert.Equal(t, []float64{0, 60, 90, 100}, fractions)
}

func TestImageHostUploadAPIFailure(t *testing.T) {
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"success":false,"status":400,"error":{"message":"invalid key"}}`)
	}))
	defer host.Close()

	p := NewImageHostProviderWith(host.URL, "bad-key", host.Client(), host.Client(), false, testLog())

	_, err := p.Upload(context.Background(), File{Name: "a.png", Size: 3, Data: []byte("abc")}, Options{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key")
}

func TestImageHostUploadProbeFailureIsUploadFailure(t *testing.T) {
	probe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer probe.Close()

	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"success":true,"status":200,"data":{"display_url":"%s/gone"}}`, probe.URL)
	}))
	defer host.Close()

	p := NewImageHostProviderWith(host.URL, "key", host.Client(), probe.Client(), true, testLog())

	_, err := p.Upload(context.Background(), File{Name: "a.png", Size: 3, Data: []byte("abc")}, Options{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
}

func TestImageHostMissingKey(t *testing.T) {
	p := NewImageHostProviderWith("http://unused", "", nil, nil, false, testLog())
	_, err := p.Upload(context.Background(), File{Name: "a.png", Size: 3}, Options{}, nil)
	require.Error(t, err)
}

func TestImageHostAcceptsImagesOnly(t *testing.T) {
	p := NewImageHostProviderWith("http://unused", "key", nil, nil, false, testLog())
	assert.True(t, p.Accepts(models.CategoryImage))
	assert.False(t, p.Accepts(models.CategoryDocument))
	assert.False(t, p.Accepts(models.CategoryVideo))
}

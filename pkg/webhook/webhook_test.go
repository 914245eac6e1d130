package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/dispatch"
)

func TestSignature(t *testing.T) {
	body := []byte(`{"jobId":"abc"}`)

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	require.Equal(t, want, Signature("secret", body))
}

func TestPostSignsAndDelivers(t *testing.T) {
	var gotSignature string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Webhook-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := &Notifier{
		url:    srv.URL,
		secret: "secret",
		client: srv.Client(),
	}

	job := dispatch.Job{ID: "job-1", State: dispatch.JobCompleted}
	body, err := json.Marshal(job)
	require.NoError(t, err)

	require.NoError(t, n.post(body))
	require.Equal(t, Signature("secret", body), gotSignature)
	require.JSONEq(t, string(body), string(gotBody))
}

func TestPostRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := &Notifier{url: srv.URL, client: srv.Client()}
	err := n.post([]byte(`{}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestPostErrorNamesNonStandardStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(599)
	}))
	defer srv.Close()

	n := &Notifier{url: srv.URL, client: srv.Client()}
	err := n.post([]byte(`{}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "599")
}

func TestNilNotifierIsSafe(t *testing.T) {
	var n *Notifier
	n.NotifyJobCompleted(dispatch.Job{ID: "job-1"})
}

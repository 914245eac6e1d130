package send

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/dispatch"
)

type okSender struct{}

func (okSender) Send(_ context.Context, phoneNumber string, _ string, _ string) dispatch.Outcome {
	return dispatch.Outcome{PhoneNumber: phoneNumber, Success: true, Status: dispatch.StatusSent}
}

func newTestApp() *fiber.App {
	SetRegistry(dispatch.NewRegistry(okSender{}))

	app := fiber.New()
	app.Post("/api/send", Send)
	app.Get("/api/send/:job_id", JobStatus)
	return app
}

func multipartRequest(t *testing.T, fields map[string][]string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for key, values := range fields {
		for _, value := range values {
			require.NoError(t, w.WriteField(key, value))
		}
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/send", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestSendRequiresMessage(t *testing.T) {
	app := newTestApp()

	res, err := app.Test(multipartRequest(t, map[string][]string{
		"numbers[]": {"5550001111"},
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestSendRequiresReadySession(t *testing.T) {
	app := newTestApp()

	// The session starts in the initializing state in tests, so a valid
	// request is refused with 503 after message validation passes.
	res, err := app.Test(multipartRequest(t, map[string][]string{
		"message":   {"hello"},
		"numbers[]": {"5550001111"},
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestSendMessageValidatedBeforeReadiness(t *testing.T) {
	app := newTestApp()

	// Missing message wins over the not-ready session.
	res, err := app.Test(multipartRequest(t, map[string][]string{
		"message": {"   "},
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestJobStatusUnknownID(t *testing.T) {
	app := newTestApp()

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/send/no-such-job", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestJobStatusReturnsSnapshot(t *testing.T) {
	app := newTestApp()

	job := registry.Submit([]string{"5550001111"}, "hello", "", 0)

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/send/"+job.ID, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got dispatch.Job
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	require.Equal(t, job.ID, got.ID)
	require.Equal(t, 1, got.TotalCount)
}

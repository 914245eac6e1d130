package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/internal/types"
)

func TestStatusBeforeConnect(t *testing.T) {
	app := fiber.New()
	app.Get("/api/status", Status)

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got types.StatusResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	require.Equal(t, "online", got.ServerStatus)
	require.Equal(t, "not_ready", got.WhatsAppStatus)
	require.Equal(t, "initializing", got.ConnectionState)
}

package session

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/whatsapp"
)

func TestQRResponseStates(t *testing.T) {
	cases := []struct {
		name       string
		state      whatsapp.ConnectionState
		stateErr   string
		qrDataURL  string
		pending    bool
		wantStatus string
		wantQR     bool
	}{
		{
			name:       "authenticated session has no code",
			state:      whatsapp.StateReady,
			wantStatus: "authenticated",
		},
		{
			name:      "pending code is served",
			state:     whatsapp.StateAwaitingScan,
			qrDataURL: "data:image/png;base64,abc",
			pending:   true,
			wantQR:    true,
		},
		{
			name:       "failed pairing reports the diagnostic",
			state:      whatsapp.StateFailed,
			stateErr:   "login code timed out before being scanned, reconnect to request a new one",
			wantStatus: "failed",
		},
		{
			name:       "no code yet",
			state:      whatsapp.StateInitializing,
			wantStatus: "initializing",
		},
	}

	for _, test := range cases {
		code, body := qrResponse(test.state, test.stateErr, test.qrDataURL, 30, test.pending)
		require.Equal(t, http.StatusOK, code, test.name)
		require.Equal(t, test.wantStatus, body.Status, test.name)
		if test.wantQR {
			require.Equal(t, test.qrDataURL, body.QRCode, test.name)
			require.Equal(t, 30, body.ExpiresInSeconds, test.name)
		} else {
			require.Empty(t, body.QRCode, test.name)
		}
	}
}

func TestQRResponseFailedStateNamesReconnect(t *testing.T) {
	_, body := qrResponse(whatsapp.StateFailed, "connection failure: banned", "", 0, false)
	require.Equal(t, "failed", body.Status)
	require.Contains(t, body.Message, "connection failure: banned")
	require.Contains(t, body.Message, "/api/reconnect")
}

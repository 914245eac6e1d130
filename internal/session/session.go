package session

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/internal/types"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/router"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/whatsapp"
)

// QRCode serves the pending login code as a PNG data URL. Once the
// session is authenticated there is no code to serve; a failed pairing
// reports its diagnostic instead of pretending a code is on the way.
func QRCode(c *fiber.Ctx) error {
	qrDataURL, expiresIn, pending, err := whatsapp.CurrentQR()
	if err != nil {
		return router.ResponseInternalError(c, "failed to render QR code: "+err.Error())
	}

	code, body := qrResponse(whatsapp.State(), whatsapp.StateError(), qrDataURL, expiresIn, pending)
	return router.ResponseJSON(c, code, body)
}

func qrResponse(state whatsapp.ConnectionState, stateErr string, qrDataURL string, expiresIn int, pending bool) (int, types.QRCodeResponse) {
	if state == whatsapp.StateReady {
		return http.StatusOK, types.QRCodeResponse{
			Status:  "authenticated",
			Message: "Session is already authenticated, no QR code available",
		}
	}

	if pending {
		return http.StatusOK, types.QRCodeResponse{
			QRCode:           qrDataURL,
			ExpiresInSeconds: expiresIn,
		}
	}

	if state == whatsapp.StateFailed {
		message := "pairing failed"
		if stateErr != "" {
			message = stateErr
		}
		return http.StatusOK, types.QRCodeResponse{
			Status:  "failed",
			Message: message + "; POST /api/reconnect to request a new login code",
		}
	}

	return http.StatusOK, types.QRCodeResponse{
		Status:  "initializing",
		Message: "QR code is not ready yet, try again shortly",
	}
}

func Logout(c *fiber.Ctx) error {
	if err := whatsapp.Logout(c.UserContext()); err != nil {
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseSuccess(c, "Successfully logged out, restart pairing to log in again")
}

func Reconnect(c *fiber.Ctx) error {
	if err := whatsapp.Reconnect(); err != nil {
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseSuccess(c, "Successfully restarted the connection")
}

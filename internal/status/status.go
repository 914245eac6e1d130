package status

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/internal/types"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/router"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/whatsapp"
)

// Status reports server liveness together with the session connection
// state. whatsappStatus collapses the state machine into the two-valued
// field older clients expect.
func Status(c *fiber.Ctx) error {
	state := whatsapp.State()

	whatsappStatus := "not_ready"
	if state == whatsapp.StateReady {
		whatsappStatus = "ready"
	}

	return router.ResponseJSON(c, http.StatusOK, types.StatusResponse{
		ServerStatus:    "online",
		WhatsAppStatus:  whatsappStatus,
		ConnectionState: string(state),
		StateError:      whatsapp.StateError(),
	})
}

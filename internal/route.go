package internal

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/router"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/storage"

	ctlContacts "github.com/gdbrns/go-whatsapp-broadcast-rest-api/internal/contacts"
	ctlGroups "github.com/gdbrns/go-whatsapp-broadcast-rest-api/internal/groups"
	ctlIndex "github.com/gdbrns/go-whatsapp-broadcast-rest-api/internal/index"
	ctlSend "github.com/gdbrns/go-whatsapp-broadcast-rest-api/internal/send"
	ctlSession "github.com/gdbrns/go-whatsapp-broadcast-rest-api/internal/session"
	ctlStatus "github.com/gdbrns/go-whatsapp-broadcast-rest-api/internal/status"
)

func Routes(app *fiber.App) {
	// Route for Index
	// ---------------------------------------------
	if router.BaseURL == "" {
		app.Get("/", ctlIndex.Index)
	} else {
		app.Get(router.BaseURL, ctlIndex.Index)
		app.Get(router.BaseURL+"/", ctlIndex.Index)
	}

	// Session routes
	app.Get(router.BaseURL+"/api/status", ctlStatus.Status)
	app.Get(router.BaseURL+"/api/qrcode", ctlSession.QRCode)
	app.Post(router.BaseURL+"/api/logout", ctlSession.Logout)
	app.Post(router.BaseURL+"/api/reconnect", ctlSession.Reconnect)

	// Directory routes
	app.Get(router.BaseURL+"/api/contacts", ctlContacts.Contacts)
	app.Get(router.BaseURL+"/api/contacts/export", ctlContacts.ContactsExport)
	app.Get(router.BaseURL+"/api/groups", ctlGroups.Groups)
	app.Get(router.BaseURL+"/api/groups/export", ctlGroups.GroupsExport)
	app.Get(router.BaseURL+"/api/groups/:group_id/contacts", ctlGroups.GroupContacts)
	app.Get(router.BaseURL+"/api/groups/:group_id/export", ctlGroups.GroupContactsExport)

	// Broadcast routes
	app.Post(router.BaseURL+"/api/send", ctlSend.Send)
	app.Get(router.BaseURL+"/api/send/:job_id", ctlSend.JobStatus)

	// Exported workbooks are public; the uploads directory is not served.
	app.Static(router.BaseURL+"/exports", storage.ExportsDir())
}

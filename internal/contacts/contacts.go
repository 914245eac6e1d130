package contacts

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/internal/types"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/router"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/spreadsheet"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/whatsapp"
)

// Contacts lists every saved contact from the synced address book.
func Contacts(c *fiber.Ctx) error {
	if !whatsapp.IsReady() {
		return router.ResponseServiceUnavailable(c, "WhatsApp session is not ready")
	}

	records, err := whatsapp.ExtractAllContacts(c.UserContext())
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseJSON(c, http.StatusOK, types.ContactsResponse{
		Success:      true,
		ContactCount: len(records),
		Contacts:     records,
	})
}

// ContactsExport writes the saved contact list as an xlsx workbook and
// returns its public download location.
func ContactsExport(c *fiber.Ctx) error {
	if !whatsapp.IsReady() {
		return router.ResponseServiceUnavailable(c, "WhatsApp session is not ready")
	}

	records, err := whatsapp.ExtractAllContacts(c.UserContext())
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	filename, _, err := spreadsheet.WriteContacts(records, "contacts")
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseJSON(c, http.StatusOK, types.ExportResponse{
		Success:      true,
		Filename:     filename,
		DownloadURL:  "/exports/" + filename,
		ContactCount: len(records),
	})
}

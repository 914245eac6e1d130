package groups

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/internal/types"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/router"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/spreadsheet"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/whatsapp"
)

// Groups lists every joined group with its participant count when
// known.
func Groups(c *fiber.Ctx) error {
	if !whatsapp.IsReady() {
		return router.ResponseServiceUnavailable(c, "WhatsApp session is not ready")
	}

	records, err := whatsapp.ExtractAllGroups(c.UserContext())
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseJSON(c, http.StatusOK, types.GroupsResponse{
		Success:    true,
		GroupCount: len(records),
		Groups:     records,
	})
}

// GroupContacts extracts the member list of one group. Extraction
// failures surface inside the result envelope, not as transport errors.
func GroupContacts(c *fiber.Ctx) error {
	if !whatsapp.IsReady() {
		return router.ResponseServiceUnavailable(c, "WhatsApp session is not ready")
	}

	result := whatsapp.ExtractGroupContacts(c.UserContext(), c.Params("group_id"))
	return router.ResponseJSON(c, http.StatusOK, result)
}

// GroupContactsExport extracts one group's members and writes them as
// an xlsx workbook.
func GroupContactsExport(c *fiber.Ctx) error {
	if !whatsapp.IsReady() {
		return router.ResponseServiceUnavailable(c, "WhatsApp session is not ready")
	}

	result := whatsapp.ExtractGroupContacts(c.UserContext(), c.Params("group_id"))
	if !result.Success {
		return router.ResponseInternalError(c, result.Error)
	}

	filename, _, err := spreadsheet.WriteContacts(result.Contacts, "group-contacts")
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseJSON(c, http.StatusOK, types.ExportResponse{
		Success:      true,
		Filename:     filename,
		DownloadURL:  "/exports/" + filename,
		ContactCount: len(result.Contacts),
	})
}

// GroupsExport writes the joined-group list as an xlsx workbook.
func GroupsExport(c *fiber.Ctx) error {
	if !whatsapp.IsReady() {
		return router.ResponseServiceUnavailable(c, "WhatsApp session is not ready")
	}

	records, err := whatsapp.ExtractAllGroups(c.UserContext())
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	filename, _, err := spreadsheet.WriteGroups(records)
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseJSON(c, http.StatusOK, types.ExportResponse{
		Success:     true,
		Filename:    filename,
		DownloadURL: "/exports/" + filename,
		GroupCount:  len(records),
	})
}

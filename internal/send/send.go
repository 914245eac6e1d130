package send

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/internal/types"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/dispatch"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/recipients"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/router"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/storage"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/whatsapp"
)

const defaultDelaySeconds = 10

var registry *dispatch.Registry

// SetRegistry wires the job registry during startup, before routes are
// served.
func SetRegistry(r *dispatch.Registry) {
	registry = r
}

// Send accepts a broadcast request and acknowledges it before dispatch
// begins. Validation order is fixed: message first, session readiness
// second, recipient resolution last.
func Send(c *fiber.Ctx) error {
	message := strings.TrimSpace(c.FormValue("message"))
	if message == "" {
		return router.ResponseBadRequest(c, "message is required")
	}

	if !whatsapp.IsReady() {
		return router.ResponseServiceUnavailable(c, "WhatsApp session is not ready")
	}

	delaySeconds := defaultDelaySeconds
	if raw := strings.TrimSpace(c.FormValue("delaySeconds")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return router.ResponseBadRequest(c, "delaySeconds must be a non-negative integer")
		}
		delaySeconds = parsed
	}

	spreadsheetPath, err := saveFormFile(c, "excel")
	if err != nil {
		return router.ResponseInternalError(c, "failed to store recipient spreadsheet: "+err.Error())
	}

	// strict=true routes spreadsheet cells through the format validator
	// instead of the lenient digit strip.
	parseRecipients := recipients.Parse
	if strict, err := strconv.ParseBool(c.FormValue("strict")); err == nil && strict {
		parseRecipients = recipients.ParseStrict
	}

	numbers := parseRecipients(formNumbers(c), c.FormValue("numbersText"), spreadsheetPath)
	if len(numbers) == 0 {
		return router.ResponseBadRequest(c, "no valid recipient numbers were provided")
	}

	mediaPath, err := saveFormFile(c, "media")
	if err != nil {
		return router.ResponseInternalError(c, "failed to store media attachment: "+err.Error())
	}

	job := registry.Submit(numbers, message, mediaPath, delaySeconds)

	// The "3-N second" range is quoted even when delaySeconds <= 3 and
	// no delay will ever apply; kept for acknowledgment-text parity.
	ack := fmt.Sprintf(
		"Broadcast to %d recipient(s) started with randomized 3-%d second delays between sends",
		job.TotalCount, delaySeconds,
	)

	return router.ResponseJSON(c, http.StatusAccepted, types.SendAcceptedResponse{
		Success:        true,
		JobID:          job.ID,
		Message:        ack,
		RecipientCount: job.TotalCount,
		DelaySeconds:   delaySeconds,
		HasMedia:       mediaPath != "",
	})
}

// JobStatus returns the live snapshot of one broadcast job.
func JobStatus(c *fiber.Ctx) error {
	job, ok := registry.Get(c.Params("job_id"))
	if !ok {
		return router.ResponseNotFound(c, "no broadcast job with that id")
	}
	return router.ResponseJSON(c, http.StatusOK, job)
}

// formNumbers collects the explicit recipient list. The field appears
// either as repeated numbers[] values or as a single JSON array string.
func formNumbers(c *fiber.Ctx) []string {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}

	var values []string
	for _, key := range []string{"numbers[]", "numbers"} {
		values = append(values, form.Value[key]...)
	}

	var out []string
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if strings.HasPrefix(trimmed, "[") {
			var decoded []string
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				out = append(out, decoded...)
				continue
			}
		}
		out = append(out, trimmed)
	}
	return out
}

// saveFormFile stores an uploaded part under the private uploads
// directory with a generated name. A missing part is not an error.
func saveFormFile(c *fiber.Ctx, field string) (string, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil || fileHeader == nil {
		return "", nil
	}
	return storeUpload(c, fileHeader)
}

func storeUpload(c *fiber.Ctx, fileHeader *multipart.FileHeader) (string, error) {
	ext := filepath.Ext(fileHeader.Filename)
	path := filepath.Join(storage.UploadsDir(), uuid.NewString()+ext)
	if err := c.SaveFile(fileHeader, path); err != nil {
		return "", err
	}
	return path, nil
}

package whatsapp

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/dispatch"
)

// Gateway adapts the session to the dispatch loop. One Send performs
// one registration check plus one message delivery.
type Gateway struct{}

func NewGateway() Gateway {
	return Gateway{}
}

func (Gateway) Send(ctx context.Context, phoneNumber string, message string, mediaPath string) dispatch.Outcome {
	outcome := dispatch.Outcome{PhoneNumber: phoneNumber}

	remoteJID, registered, err := IsRegistered(ctx, phoneNumber)
	if err != nil {
		outcome.Status = dispatch.StatusError
		outcome.Error = err.Error()
		return outcome
	}
	if !registered {
		outcome.Status = dispatch.StatusNotRegistered
		outcome.Error = "phone number is not registered on whatsapp"
		return outcome
	}

	if mediaPath == "" {
		if _, err := SendText(ctx, remoteJID, message); err != nil {
			outcome.Status = dispatch.StatusError
			outcome.Error = err.Error()
			return outcome
		}
		outcome.Success = true
		outcome.Status = dispatch.StatusSent
		return outcome
	}

	mediaBytes, err := os.ReadFile(mediaPath)
	if err != nil {
		outcome.Status = dispatch.StatusError
		outcome.Error = "unable to read media file: " + err.Error()
		return outcome
	}

	mediaType := mediaMimeType(mediaPath)
	if strings.HasPrefix(mediaType, "image/") {
		_, err = SendImage(ctx, remoteJID, mediaBytes, mediaType, message)
	} else {
		_, err = SendDocument(ctx, remoteJID, mediaBytes, mediaType, filepath.Base(mediaPath), message)
	}
	if err != nil {
		outcome.Status = dispatch.StatusError
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Success = true
	outcome.Status = dispatch.StatusSent
	return outcome
}

func mediaMimeType(path string) string {
	if mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); mediaType != "" {
		if idx := strings.IndexByte(mediaType, ';'); idx > 0 {
			return mediaType[:idx]
		}
		return mediaType
	}
	return "application/octet-stream"
}

package internal

import (
	"context"

	ctlSend "github.com/gdbrns/go-whatsapp-broadcast-rest-api/internal/send"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/dispatch"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/log"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/storage"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/webhook"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/whatsapp"
)

func Startup() {
	log.Print(nil).Info("Running Startup Tasks")

	ctx := context.Background()

	if err := storage.EnsureDirs(); err != nil {
		log.Print(nil).Fatal("Failed to prepare storage directories: " + err.Error())
	}

	if err := pkgWhatsApp.Initialize(ctx); err != nil {
		log.Print(nil).Fatal("Failed to initialize WhatsApp session datastore: " + err.Error())
	}

	registry := dispatch.NewRegistry(pkgWhatsApp.NewGateway())

	notifier := webhook.NewFromEnv()
	registry.OnCompleted(notifier.NotifyJobCompleted)

	ctlSend.SetRegistry(registry)

	// Pairing or reconnect runs in the background so the HTTP surface
	// comes up immediately; /api/qrcode polls for the login code.
	go func() {
		if err := pkgWhatsApp.Connect(ctx); err != nil {
			log.Print(nil).Error("Failed to start WhatsApp connection: " + err.Error())
		}
	}()
}

package internal

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/env"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/log"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/storage"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/whatsapp"
)

func Routines(cron *cron.Cron) {
	log.Print(nil).Info("Running Routine Tasks")

	_, err := cron.AddFunc("0 */5 * * * *", func() {
		state := pkgWhatsApp.State()
		entry := log.Print(nil).WithField("state", string(state))
		if state == pkgWhatsApp.StateReady {
			entry.Info("Session healthy")
			return
		}
		if detail := pkgWhatsApp.StateError(); detail != "" {
			entry = entry.WithField("detail", detail)
		}
		entry.Warn("Session not ready")
	})
	if err != nil {
		log.Print(nil).WithField("error", err.Error()).Error("Failed to add health check cron job")
	}

	// Retention is off unless explicitly enabled; uploaded and exported
	// files are kept forever otherwise.
	if env.GetEnvBoolOrDefault("STORAGE_RETENTION_ENABLED", false) {
		maxAge := env.GetEnvDurationOrDefault("STORAGE_RETENTION_MAX_AGE", 7*24*time.Hour)
		_, err := cron.AddFunc("0 0 * * * *", func() {
			storage.Sweep(maxAge)
		})
		if err != nil {
			log.Print(nil).WithField("error", err.Error()).Error("Failed to add storage retention cron job")
		} else {
			log.Print(nil).WithField("max_age", maxAge.String()).Info("Storage retention sweep enabled")
		}
	}

	cron.Start()
}

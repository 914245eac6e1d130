package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sunshineplan/imgconv"
	"golang.org/x/sync/semaphore"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	qrCode "github.com/skip2/go-qrcode"
	"google.golang.org/protobuf/proto"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/env"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/log"
)

// ConnectionState is the session lifecycle variant. It is written only by
// connection lifecycle callbacks and read through State() by every
// handler; no handler may mutate it.
type ConnectionState string

const (
	StateInitializing ConnectionState = "initializing"
	StateAwaitingScan ConnectionState = "awaiting_scan"
	StateReady        ConnectionState = "ready"
	StateDisconnected ConnectionState = "disconnected"
	StateFailed       ConnectionState = "failed"
)

const (
	qrChannelWaitTimeout = 2 * time.Minute
	logoutRequestTimeout = 30 * time.Second
)

var (
	mu        sync.RWMutex
	datastore *sqlstore.Container
	client    *whatsmeow.Client
	state     = StateInitializing
	stateErr  string

	currentQRCode string
	qrIssuedAt    time.Time
	qrExpiry      time.Duration

	// True while a pairing flow owns the QR channel; guards against a
	// second concurrent GetQRChannel.
	pairing bool

	// The underlying connection is a single shared resource; every
	// platform-facing operation queues behind this semaphore so
	// concurrent requests never interleave on the socket.
	platformSem = semaphore.NewWeighted(1)
)

// Initialize opens the session datastore and constructs the client.
// A datastore failure here is fatal to the process by contract; the
// caller logs and exits.
func Initialize(ctx context.Context) error {
	dbType := env.GetEnvStringOrDefault("WHATSAPP_DATASTORE_TYPE", "sqlite3")
	dbURI := env.GetEnvStringOrDefault("WHATSAPP_DATASTORE_URI", "file:storages/whatsapp.db?_foreign_keys=on")

	driver := normalizeDatastoreDriver(dbType)
	dbURI = normalizeDatastoreDSN(driver, dbURI)

	log.Op("Initialize").Info("Initializing WhatsApp datastore with driver=" + driver)

	container, err := sqlstore.New(ctx, driver, dbURI, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize whatsapp datastore: %w", err)
	}
	if err := container.Upgrade(ctx); err != nil {
		return fmt.Errorf("datastore upgrade failed: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to load device from datastore: %w", err)
	}
	if device == nil {
		device = container.NewDevice()
	}

	store.DeviceProps.Os = proto.String(runtime.GOOS)
	store.DeviceProps.PlatformType = waCompanionReg.DeviceProps_CHROME.Enum()
	store.DeviceProps.RequireFullSync = proto.Bool(false)

	waClient := whatsmeow.NewClient(device, nil)

	if proxyURL, err := env.GetEnvString("WHATSAPP_CLIENT_PROXY_URL"); err == nil {
		waClient.SetProxyAddress(proxyURL)
	}

	waClient.EnableAutoReconnect = true
	waClient.AutoTrustIdentity = true
	waClient.AddEventHandler(handleEvents)

	mu.Lock()
	datastore = container
	client = waClient
	mu.Unlock()

	log.Op("Initialize").Info("database is ok")
	return nil
}

// Connect brings the session up. Without stored credentials it starts
// the QR pairing flow and returns while the code channel is consumed in
// the background; with credentials it reconnects directly.
func Connect(ctx context.Context) error {
	waClient, err := currentClient()
	if err != nil {
		return err
	}

	if waClient.Store.ID == nil {
		return startPairing(ctx, waClient)
	}

	if err := waClient.Connect(); err != nil {
		setState(StateFailed, err.Error())
		return err
	}
	return nil
}

// startPairing opens a fresh QR channel and connects. It may be called
// again after a timed-out or logged-out session to issue a new login
// code; only one pairing flow runs at a time.
func startPairing(ctx context.Context, waClient *whatsmeow.Client) error {
	mu.Lock()
	if pairing {
		mu.Unlock()
		return nil
	}
	pairing = true
	mu.Unlock()

	qrCtx, cancel := context.WithTimeout(ctx, qrChannelWaitTimeout)
	qrChan, err := waClient.GetQRChannel(qrCtx)
	if err != nil {
		cancel()
		endPairing()
		setState(StateFailed, err.Error())
		return err
	}
	if err := waClient.Connect(); err != nil {
		cancel()
		endPairing()
		setState(StateFailed, err.Error())
		return err
	}
	setState(StateAwaitingScan, "")
	go func() {
		defer cancel()
		defer endPairing()
		consumeQRChannel(qrChan)
	}()
	return nil
}

func endPairing() {
	mu.Lock()
	pairing = false
	mu.Unlock()
}

func consumeQRChannel(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			mu.Lock()
			currentQRCode = evt.Code
			qrIssuedAt = time.Now()
			qrExpiry = evt.Timeout
			mu.Unlock()
			setState(StateAwaitingScan, "")
			log.Op("QRChannel").Info("New login code received, waiting for scan")
		case whatsmeow.QRChannelSuccess.Event:
			clearQRCode()
			log.Op("QRChannel").Info("Login code scanned, pairing complete")
		case whatsmeow.QRChannelTimeout.Event:
			clearQRCode()
			setState(StateFailed, "login code timed out before being scanned, reconnect to request a new one")
			log.Op("QRChannel").Error("Login code timed out before being scanned")
		case whatsmeow.QRChannelClientOutdated.Event:
			clearQRCode()
			setState(StateFailed, "client version is outdated for QR pairing")
			log.Op("QRChannel").Error("Client version is outdated for QR pairing")
		case "error":
			clearQRCode()
			message := "login code channel reported an unspecified error"
			if evt.Error != nil {
				message = evt.Error.Error()
			}
			setState(StateFailed, message)
			log.Op("QRChannel").Error("Login code channel error: " + message)
		}
	}
}

func handleEvents(evt interface{}) {
	switch e := evt.(type) {
	case *events.Connected:
		clearQRCode()
		setState(StateReady, "")
		log.Op("Events").Info("Client connected and ready")
	case *events.Disconnected:
		setState(StateDisconnected, "")
		log.Op("Events").Warn("Client disconnected")
	case *events.StreamReplaced:
		setState(StateDisconnected, "stream replaced by another session")
		log.Op("Events").Warn("Stream replaced by another session")
	case *events.LoggedOut:
		clearQRCode()
		setState(StateAwaitingScan, "")
		log.Op("Events").Warn("Client logged out, restarting pairing")
		go restartPairingAfterLogout()
	case *events.ConnectFailure:
		setState(StateFailed, fmt.Sprintf("connection failure: %s", e.Reason))
		log.Op("Events").Error(fmt.Sprintf("Client connection failure, reason=%s, message=%s", e.Reason, e.Message))
	case *events.TemporaryBan:
		setState(StateFailed, fmt.Sprintf("temporarily banned: %s", e.Code))
		log.Op("Events").Error(fmt.Sprintf("Client temporarily banned, reason=%s, expires=%s", e.Code, e.Expire))
	case *events.KeepAliveTimeout:
		log.Op("Events").Warn(fmt.Sprintf("Client keepalive timeout, errors=%d, lastSuccess=%s", e.ErrorCount, e.LastSuccess.Format(time.RFC3339)))
	}
}

func setState(next ConnectionState, message string) {
	mu.Lock()
	state = next
	stateErr = message
	mu.Unlock()
}

func clearQRCode() {
	mu.Lock()
	currentQRCode = ""
	qrIssuedAt = time.Time{}
	qrExpiry = 0
	mu.Unlock()
}

// State returns the current connection state; StateError carries the
// diagnostic for Failed.
func State() ConnectionState {
	mu.RLock()
	defer mu.RUnlock()
	return state
}

func StateError() string {
	mu.RLock()
	defer mu.RUnlock()
	return stateErr
}

func IsReady() bool {
	return State() == StateReady
}

// CurrentQR renders the pending login code as a base64 PNG data URL.
// The bool reports whether a code is currently pending.
func CurrentQR() (string, int, bool, error) {
	mu.RLock()
	code := currentQRCode
	issuedAt := qrIssuedAt
	expiry := qrExpiry
	mu.RUnlock()

	if code == "" {
		return "", 0, false, nil
	}

	remaining := expiry - time.Since(issuedAt)
	if remaining <= 0 {
		return "", 0, false, nil
	}

	qrPNG, err := qrCode.Encode(code, qrCode.Medium, 256)
	if err != nil {
		return "", 0, false, err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(qrPNG), int(remaining.Seconds()), true, nil
}

// restartPairingAfterLogout clears invalidated credentials and opens a
// new QR channel so the next scan can pair again without a restart.
func restartPairingAfterLogout() {
	waClient, err := currentClient()
	if err != nil {
		return
	}

	waClient.Disconnect()

	ctx := context.Background()
	if waClient.Store.ID != nil {
		if err := waClient.Store.Delete(ctx); err != nil {
			setState(StateFailed, "failed to clear invalidated credentials: "+err.Error())
			log.Op("Events").Error("Failed to clear invalidated credentials: " + err.Error())
			return
		}
	}

	if err := startPairing(ctx, waClient); err != nil {
		log.Op("Events").Error("Failed to restart pairing after logout: " + err.Error())
	}
}

// Reconnect restarts the connection. With stored credentials it simply
// reconnects; without them it reopens the pairing flow so a new login
// code gets issued.
func Reconnect() error {
	waClient, err := currentClient()
	if err != nil {
		return err
	}

	waClient.Disconnect()

	if waClient.Store.ID != nil {
		return waClient.Connect()
	}

	return startPairing(context.Background(), waClient)
}

func Logout(ctx context.Context) error {
	waClient, err := currentClient()
	if err != nil {
		return err
	}

	if waClient.Store.ID == nil {
		return errors.New("no stored credentials, nothing to log out")
	}

	logoutCtx, cancel := context.WithTimeout(ctx, logoutRequestTimeout)
	defer cancel()

	if err := waClient.Logout(logoutCtx); err != nil {
		waClient.Disconnect()
		if err := waClient.Store.Delete(logoutCtx); err != nil {
			return err
		}
	}

	setState(StateAwaitingScan, "")
	return nil
}

func currentClient() (*whatsmeow.Client, error) {
	mu.RLock()
	defer mu.RUnlock()
	if client == nil {
		return nil, errors.New("whatsapp client is not initialized")
	}
	return client, nil
}

func isClientOK(waClient *whatsmeow.Client) error {
	if !waClient.IsConnected() {
		return errors.New("whatsapp client is not connected")
	}
	if !waClient.IsLoggedIn() {
		return errors.New("whatsapp client is not logged in")
	}
	return nil
}

// acquirePlatform queues the caller behind every other platform-facing
// operation on the shared connection.
func acquirePlatform(ctx context.Context) (func(), error) {
	if err := platformSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { platformSem.Release(1) }, nil
}

// ComposeUserJID appends the personal-chat server unless the identifier
// already carries a server suffix.
func ComposeUserJID(id string) types.JID {
	if strings.ContainsRune(id, '@') {
		if parsed, err := types.ParseJID(id); err == nil {
			return parsed
		}
	}
	return types.NewJID(DecomposeJID(id), types.DefaultUserServer)
}

// DecomposeJID reduces an identifier to its bare user part.
func DecomposeJID(id string) string {
	if strings.ContainsRune(id, '@') {
		buffers := strings.Split(id, "@")
		id = buffers[0]
	}

	if len(id) > 0 && id[0] == '+' {
		id = id[1:]
	}

	return strings.TrimSpace(id)
}

// IsRegistered resolves a phone number to its platform identity.
func IsRegistered(ctx context.Context, phone string) (types.JID, bool, error) {
	waClient, err := currentClient()
	if err != nil {
		return types.EmptyJID, false, err
	}
	if err := isClientOK(waClient); err != nil {
		return types.EmptyJID, false, err
	}

	release, err := acquirePlatform(ctx)
	if err != nil {
		return types.EmptyJID, false, err
	}
	defer release()

	number := DecomposeJID(phone)
	if number == "" {
		return types.EmptyJID, false, errors.New("empty phone number")
	}

	infos, err := waClient.IsOnWhatsApp(ctx, []string{"+" + number})
	if err != nil {
		return types.EmptyJID, false, err
	}
	if len(infos) == 0 || !infos[0].IsIn {
		return types.EmptyJID, false, nil
	}
	return infos[0].JID, true, nil
}

func SendText(ctx context.Context, remoteJID types.JID, message string) (string, error) {
	waClient, err := currentClient()
	if err != nil {
		return "", err
	}
	if err := isClientOK(waClient); err != nil {
		return "", err
	}

	release, err := acquirePlatform(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	msgExtra := whatsmeow.SendRequestExtra{ID: waClient.GenerateMessageID()}
	msgContent := &waE2E.Message{
		Conversation: proto.String(message),
	}
	if _, err := waClient.SendMessage(ctx, remoteJID, msgContent, msgExtra); err != nil {
		return "", err
	}
	return msgExtra.ID, nil
}

func SendDocument(ctx context.Context, remoteJID types.JID, documentBytes []byte, documentType string, documentName string, caption string) (string, error) {
	waClient, err := currentClient()
	if err != nil {
		return "", err
	}
	if err := isClientOK(waClient); err != nil {
		return "", err
	}

	release, err := acquirePlatform(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	documentUploaded, err := waClient.Upload(ctx, documentBytes, whatsmeow.MediaDocument)
	if err != nil {
		return "", errors.New("error while uploading media to whatsapp server")
	}

	msgExtra := whatsmeow.SendRequestExtra{ID: waClient.GenerateMessageID()}
	msgContent := &waE2E.Message{
		DocumentMessage: &waE2E.DocumentMessage{
			URL:           proto.String(documentUploaded.URL),
			DirectPath:    proto.String(documentUploaded.DirectPath),
			Mimetype:      proto.String(documentType),
			FileName:      proto.String(documentName),
			Caption:       proto.String(caption),
			FileLength:    proto.Uint64(documentUploaded.FileLength),
			FileSHA256:    documentUploaded.FileSHA256,
			FileEncSHA256: documentUploaded.FileEncSHA256,
			MediaKey:      documentUploaded.MediaKey,
		},
	}
	if _, err := waClient.SendMessage(ctx, remoteJID, msgContent, msgExtra); err != nil {
		return "", err
	}
	return msgExtra.ID, nil
}

func SendImage(ctx context.Context, remoteJID types.JID, imageBytes []byte, imageType string, imageCaption string) (string, error) {
	waClient, err := currentClient()
	if err != nil {
		return "", err
	}
	if err := isClientOK(waClient); err != nil {
		return "", err
	}

	release, err := acquirePlatform(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	if env.GetEnvBoolOrDefault("WHATSAPP_MEDIA_IMAGE_COMPRESSION", false) {
		imgResizeDecode, err := imgconv.Decode(bytes.NewReader(imageBytes))
		if err != nil {
			return "", errors.New("error while decoding resize image stream")
		}
		imgResizeEncode := new(bytes.Buffer)
		err = imgconv.Write(imgResizeEncode,
			imgconv.Resize(imgResizeDecode, &imgconv.ResizeOption{Width: 1024}),
			&imgconv.FormatOption{})
		if err != nil {
			return "", errors.New("error while encoding resize image stream")
		}
		imageBytes = imgResizeEncode.Bytes()
	}

	imgThumbDecode, err := imgconv.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return "", errors.New("error while decoding thumbnail image stream")
	}
	imgThumbEncode := new(bytes.Buffer)
	err = imgconv.Write(imgThumbEncode,
		imgconv.Resize(imgThumbDecode, &imgconv.ResizeOption{Width: 72}),
		&imgconv.FormatOption{Format: imgconv.JPEG})
	if err != nil {
		return "", errors.New("error while encoding thumbnail image stream")
	}

	imageUploaded, err := waClient.Upload(ctx, imageBytes, whatsmeow.MediaImage)
	if err != nil {
		return "", errors.New("error while uploading media to whatsapp server")
	}
	imageThumbUploaded, err := waClient.Upload(ctx, imgThumbEncode.Bytes(), whatsmeow.MediaLinkThumbnail)
	if err != nil {
		return "", errors.New("error while uploading image thumbnail to whatsapp server")
	}

	msgExtra := whatsmeow.SendRequestExtra{ID: waClient.GenerateMessageID()}
	msgContent := &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			URL:                 proto.String(imageUploaded.URL),
			DirectPath:          proto.String(imageUploaded.DirectPath),
			Mimetype:            proto.String(imageType),
			Caption:             proto.String(imageCaption),
			FileLength:          proto.Uint64(imageUploaded.FileLength),
			FileSHA256:          imageUploaded.FileSHA256,
			FileEncSHA256:       imageUploaded.FileEncSHA256,
			MediaKey:            imageUploaded.MediaKey,
			JPEGThumbnail:       imgThumbEncode.Bytes(),
			ThumbnailDirectPath: &imageThumbUploaded.DirectPath,
			ThumbnailSHA256:     imageThumbUploaded.FileSHA256,
			ThumbnailEncSHA256:  imageThumbUploaded.FileEncSHA256,
		},
	}
	if _, err := waClient.SendMessage(ctx, remoteJID, msgContent, msgExtra); err != nil {
		return "", err
	}
	return msgExtra.ID, nil
}

func normalizeDatastoreDriver(driver string) string {
	switch strings.ToLower(driver) {
	case "postgresql", "postgres", "pgx":
		return "pgx"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return strings.ToLower(driver)
	}
}

func normalizeDatastoreDSN(driver string, dsn string) string {
	if driver != "pgx" {
		return dsn
	}
	appendParam := func(current string, key string, value string) string {
		if strings.Contains(current, key+"=") {
			return current
		}
		separator := "?"
		if strings.Contains(current, "?") {
			if strings.HasSuffix(current, "?") || strings.HasSuffix(current, "&") {
				separator = ""
			} else {
				separator = "&"
			}
		}
		return current + separator + key + "=" + value
	}
	dsn = appendParam(dsn, "prefer_simple_protocol", "true")
	dsn = appendParam(dsn, "statement_cache_capacity", "0")
	dsn = appendParam(dsn, "default_query_exec_mode", "simple_protocol")
	return dsn
}

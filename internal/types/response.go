package types

import (
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/whatsapp"
)

// Literal response bodies for endpoints whose shape is part of the API
// contract; everything else uses the shared envelope in pkg/router.

type StatusResponse struct {
	ServerStatus    string `json:"serverStatus"`
	WhatsAppStatus  string `json:"whatsappStatus"`
	ConnectionState string `json:"connectionState"`
	StateError      string `json:"stateError,omitempty"`
}

type QRCodeResponse struct {
	Status           string `json:"status,omitempty"`
	Message          string `json:"message,omitempty"`
	QRCode           string `json:"qrCode,omitempty"`
	ExpiresInSeconds int    `json:"expiresInSeconds,omitempty"`
}

type ContactsResponse struct {
	Success      bool               `json:"success"`
	ContactCount int                `json:"contactCount"`
	Contacts     []whatsapp.Contact `json:"contacts"`
}

type GroupsResponse struct {
	Success    bool             `json:"success"`
	GroupCount int              `json:"groupCount"`
	Groups     []whatsapp.Group `json:"groups"`
}

type ExportResponse struct {
	Success      bool   `json:"success"`
	Filename     string `json:"filename"`
	DownloadURL  string `json:"downloadUrl"`
	ContactCount int    `json:"contactCount,omitempty"`
	GroupCount   int    `json:"groupCount,omitempty"`
}

type SendAcceptedResponse struct {
	Success        bool   `json:"success"`
	JobID          string `json:"jobId"`
	Message        string `json:"message"`
	RecipientCount int    `json:"recipientCount"`
	DelaySeconds   int    `json:"delaySeconds"`
	HasMedia       bool   `json:"hasMedia"`
}

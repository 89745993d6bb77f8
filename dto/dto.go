package dto

import (
	"encoding/json"
	"video-uploader/constant"
)

// ChangeEvent is one remote document change. Payload holds the full record
// for added and modified events and is empty for removed ones.
type ChangeEvent struct {
	Type    constant.ChangeType `json:"type"`
	ID      string              `json:"id"`
	Payload json.RawMessage     `json:"payload,omitempty"`
}

// ChangeBatch is what a subscription delivers: incremental changes plus the
// ids currently known to exist remotely. Complete is false when the snapshot
// could not be read and must not be trusted for pruning.
type ChangeBatch struct {
	UserID   string        `json:"userId"`
	Changes  []ChangeEvent `json:"changes"`
	Snapshot []string      `json:"snapshot"`
	Complete bool          `json:"complete"`
}

type CreateVideoRequest struct {
	LocalPath string `json:"localPath" binding:"required"`
	Title     string `json:"title" binding:"required"`
}

type SignInRequest struct {
	Token string `json:"token" binding:"required"`
}

type SettingsRequest struct {
	WebhookURL  *string `json:"webhookURL"`
	DebugOutput *bool   `json:"debugOutput"`
}

type WebhookResponse struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type CreateVideoResponse struct {
	ID     string               `json:"id"`
	Status constant.VideoStatus `json:"status"`
}

type SessionResponse struct {
	SignedIn  bool   `json:"signedIn"`
	UID       string `json:"uid,omitempty"`
	Email     string `json:"email,omitempty"`
	FeedUser  string `json:"feedUser,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

type SettingsResponse struct {
	WebhookURL  string `json:"webhookURL"`
	DebugOutput bool   `json:"debugOutput"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

package constant

import "errors"

var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrTransferFailed       = errors.New("transfer failed")
	ErrURLResolutionFailed  = errors.New("download url resolution failed")
	ErrRemoteWriteFailed    = errors.New("remote write failed")
	ErrSubscriptionFailed   = errors.New("subscription failed")
	ErrDecodeFailed         = errors.New("decode failed")
	ErrNotFound             = errors.New("video not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrWebhookNotConfigured = errors.New("webhook url not configured")
	ErrUploadInProgress     = errors.New("upload already in progress")
)

var ErrEmptyTitle = errors.New("title must not be empty")

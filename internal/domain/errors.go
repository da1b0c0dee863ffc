package domain

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSettingsNotFound   = errors.New("settings not found")
	ErrUnknownAction      = errors.New("unknown action")
	ErrBackendUnavailable = errors.New("reasoning backend unavailable")
	ErrInvalidMode        = errors.New("invalid mode")
	ErrInvalidTier        = errors.New("invalid tier")
)

package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrInvalidToken = errors.New("invalid token")
	ErrTimeoutToken = errors.New("timeout token")

	ErrProjectNotFound  = errors.New("project not found")
	ErrMediaNotFound    = errors.New("media not found")
	ErrMediaUnsupported = errors.New("unsupported media type")
)

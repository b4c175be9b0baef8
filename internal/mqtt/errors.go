package mqtt

import "errors"

var (
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")
	ErrInvalidCommand   = errors.New("mqtt: invalid command")
)

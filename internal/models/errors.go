package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExecuted      = errors.New("action already executed")
	ErrApprovalNotRequired  = errors.New("action does not require approval")
	ErrInvalidActionIndex   = errors.New("invalid action index")
	ErrAlreadyAcknowledged  = errors.New("alert already acknowledged")
	ErrChannelNotConfigured = errors.New("channel not configured")
)

// ConfigurationError means the request cannot proceed until something is
// configured; it is never retried.
type ConfigurationError struct {
	EventID string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.EventID == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error for event %s: %s", e.EventID, e.Reason)
}

type WeatherFetchError struct {
	Op  string
	Err error
}

func (e *WeatherFetchError) Error() string {
	return fmt.Sprintf("weather fetch %s: %v", e.Op, e.Err)
}

func (e *WeatherFetchError) Unwrap() error { return e.Err }

type DeliveryError struct {
	Channel   ChannelName
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery to %s: %v", e.Channel, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

package notify

import "errors"

var (
	ErrTopicNotFound     = errors.New("topic not found")
	ErrNoEmailConfigured = errors.New("user does not have an email address configured")
	ErrMailTransport     = errors.New("failed to send email")
)

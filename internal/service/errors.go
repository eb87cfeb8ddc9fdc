package service

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNoSchema             = errors.New("no database schema available")
)

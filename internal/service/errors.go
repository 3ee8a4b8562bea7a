package service

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomExists         = errors.New("room id already exists")
	ErrInvalidCredentials = errors.New("invalid password")
	ErrInvalidInput       = errors.New("room id and password are required")
	ErrInvalidTicket      = errors.New("invalid or expired room ticket")
	ErrInternalServer     = errors.New("internal server error")
)

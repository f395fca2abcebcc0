// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 36
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUserIDTooLong   = errors.New("user id too long")
	ErrUnknownRole     = errors.New("unknown role")
)

// Role is the classroom role of a user as reported by the room service.
type Role string

const (
	RoleTeacher   Role = "teacher"
	RoleStudent   Role = "student"
	RoleAudience  Role = "audience"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleTeacher, RoleStudent, RoleAudience, RoleAssistant:
		return true
	}
	return false
}

type User struct {
	UserUUID   string `json:"userUuid" mapstructure:"userUuid"`
	UserName   string `json:"userName" mapstructure:"userName"`
	Role       Role   `json:"role" mapstructure:"role"`
	StreamUUID string `json:"streamUuid,omitempty" mapstructure:"streamUuid"`
}

// NewUser validates the local identity; an empty id gets a fresh uuid.
func NewUser(id, username string, role Role) (*User, error) {
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	if !role.Valid() {
		return nil, ErrUnknownRole
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &User{UserUUID: id, UserName: username, Role: role}, nil
}

func (u *User) SetUsername(username string) error {
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.UserName = username
	return nil
}

// FindUser returns the first user with the given uuid.
func FindUser(users []User, userUUID string) (User, bool) {
	for _, u := range users {
		if u.UserUUID == userUUID {
			return u, true
		}
	}
	return User{}, false
}

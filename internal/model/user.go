package model

import "time"

// UserInfo identifies the caller and the root of its object namespace.
type UserInfo struct {
	Username       string    `json:"username"`
	ObjectBasePath string    `json:"object_base_path"`
	CreatedAt      time.Time `json:"created_at"`
}

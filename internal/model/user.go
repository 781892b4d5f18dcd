package model

import "gorm.io/gorm"

// User приходит из внешнего сервиса идентификации; здесь только чтение
type User struct {
	gorm.Model
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

func (u *User) EnsureDisplayName() {
	if u.DisplayName == "" {
		u.DisplayName = u.Username
	}
}

package models

import "gorm.io/gorm"

type ContactMessage struct {
	gorm.Model
	Name      string `gorm:"size:120" json:"name"`
	Email     string `gorm:"size:255" json:"email"`
	Message   string `gorm:"type:text" json:"message"`
	Delivered bool   `json:"delivered"`
}

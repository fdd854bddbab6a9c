package model

import "time"

// Category groups tasks by area (work, health, study, etc.).
// Names are free text and may repeat, even for the same user.
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	Tasks []Task `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"-"`
}

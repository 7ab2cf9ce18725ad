package domain

import (
	"time"

	"github.com/google/uuid"
)

// Business is the owning organization a report is attached to.
type Business struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Business) TableName() string { return "businesses" }

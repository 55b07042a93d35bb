package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the login identity an Account hangs off. The billing core never
// mutates users; the admin surface looks them up by id or username.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Username  string    `gorm:"column:username;not null;uniqueIndex"`
	Email     string    `gorm:"column:email;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

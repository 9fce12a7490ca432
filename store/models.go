package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Memory is one persisted conversation message for an agent.
type Memory struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	AgentID   string    `gorm:"index;size:36;not null" json:"agent_id"`
	UserID    string    `gorm:"size:64" json:"user_id"`
	UserName  string    `gorm:"size:128" json:"user_name"`
	Role      string    `gorm:"size:16;not null" json:"role"` // "user" or "agent"
	Text      string    `gorm:"type:text" json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns a random ID when none was set.
func (m *Memory) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// CacheEntry backs the database cache used when no redis is configured.
// The composite primary key keeps entries for different agents separate even
// when they share one underlying database.
type CacheEntry struct {
	AgentID   string    `gorm:"primaryKey;size:36"`
	Key       string    `gorm:"primaryKey;size:512"`
	Value     string    `gorm:"type:text"`
	ExpiresAt time.Time `gorm:"index"` // zero means no expiry
	UpdatedAt time.Time
}

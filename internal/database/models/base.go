package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UUIDList stores a list of ids as a "{id1,id2}" text literal. The same
// literal is accepted by PostgreSQL array columns and plain text columns.
type UUIDList []uuid.UUID

// Scan implements the sql.Scanner interface for reading from database
func (a *UUIDList) Scan(value interface{}) error {
	var str string
	switch v := value.(type) {
	case nil:
		*a = nil
		return nil
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("UUIDList: expected string, got %T", value)
	}

	str = strings.Trim(strings.TrimSpace(str), "{}")
	if str == "" {
		*a = nil
		return nil
	}

	parts := strings.Split(str, ",")
	result := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := uuid.Parse(p)
		if err != nil {
			return fmt.Errorf("UUIDList: failed to parse UUID %q: %w", p, err)
		}
		result = append(result, id)
	}
	*a = result
	return nil
}

// Value implements the driver.Valuer interface for writing to database
func (a UUIDList) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	strs := make([]string, len(a))
	for i, id := range a {
		strs[i] = id.String()
	}
	return "{" + strings.Join(strs, ",") + "}", nil
}

// Base model with UUID primary key and timestamps
type Base struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

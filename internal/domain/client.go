package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Client is a registered calling application, distinct from the end-user
// principal. Rows are immutable once created.
type Client struct {
	ID             string         `json:"id" gorm:"primary_key;size:32"`
	Name           string         `json:"name" gorm:"uniqueIndex;not null;size:64"`
	Secret         string         `json:"-" gorm:"uniqueIndex;not null;size:64"`
	AllowedOrigins datatypes.JSON `json:"allowedOrigins"`
	CreatedAt      time.Time      `json:"createdAt"`
}

func (c *Client) BeforeUpdate(_ *gorm.DB) error {
	return ErrSavingNotAllowed
}

// Origins returns the registered allowed origins, nil when none are set.
func (c *Client) Origins() []string {
	if len(c.AllowedOrigins) == 0 {
		return nil
	}
	var origins []string
	if err := json.Unmarshal(c.AllowedOrigins, &origins); err != nil {
		return nil
	}
	return origins
}

// OriginAllowed reports whether the given origin may call on behalf of
// this client. Clients with no registered origins accept any origin.
func (c *Client) OriginAllowed(origin string) bool {
	origins := c.Origins()
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == origin {
			return true
		}
	}
	return false
}

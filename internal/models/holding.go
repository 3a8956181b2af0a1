package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Holding is one "snap and buy" purchase: a stock position minted from a
// camera capture. Rows belong to exactly one user and are only readable
// through an authenticated session for that user.
type Holding struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	UserID          uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Ticker          string    `gorm:"not null" json:"ticker"`
	Name            string    `json:"name"`
	LogoURL         string    `gorm:"column:logo_url" json:"logo_url"`
	AmountInvested  float64   `gorm:"column:amount_invested" json:"amount_invested"`
	Shares          float64   `json:"shares"`
	PriceAtPurchase float64   `gorm:"column:price_at_purchase" json:"price_at_purchase"`
	// CapturedImage is the compressed data-URL snapshot taken at purchase. Optional.
	CapturedImage *string `gorm:"column:captured_image;type:text" json:"captured_image,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name used by Holding to `holdings`
func (Holding) TableName() string {
	return "holdings"
}

func (h *Holding) BeforeCreate(tx *gorm.DB) (err error) {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return
}

/**
 * @description
 * Identity-store database models.
 * AuthUser maps to the 'auth_users' table, Profile to the 'profiles' table.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthUser is a credential record in the backing identity store.
// Wallet users never pick these credentials themselves: the email is a
// synthetic "<address>@wallet.snapnbuy" alias and the password hash is
// derived server-side from the wallet address.
type AuthUser struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	// WalletAddress mirrors the user_metadata the original store kept.
	WalletAddress string `gorm:"column:wallet_address" json:"wallet_address"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by AuthUser to `auth_users`
func (AuthUser) TableName() string {
	return "auth_users"
}

// BeforeCreate ensures UUID is generated if not present (though DB usually handles this)
func (u *AuthUser) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

// Profile links one wallet address to one identity. The wallet address is
// always stored lowercase; the unique index is what makes concurrent
// first-time sign-ins converge on a single identity.
type Profile struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"` // same as AuthUser.ID
	WalletAddress string    `gorm:"uniqueIndex;not null" json:"wallet_address"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Profile to `profiles`
func (Profile) TableName() string {
	return "profiles"
}

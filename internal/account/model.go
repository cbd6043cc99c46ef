package account

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account is the persisted user record. Token fields are pointers so that
// "absent" and "issued" are distinct states in the document: a nil pointer is
// omitted from the stored document entirely.
type Account struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose password hash in JSON
	Verified     bool               `bson:"verified" json:"verified"`

	// VerificationToken is present only while email verification is pending.
	VerificationToken *string `bson:"verificationToken,omitempty" json:"-"`

	// ResetToken and ResetTokenExpiresAt are set and cleared together.
	ResetToken          *string    `bson:"resetToken,omitempty" json:"-"`
	ResetTokenExpiresAt *time.Time `bson:"resetTokenExpiresAt,omitempty" json:"-"`

	Credits int `bson:"credits" json:"credits"`

	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}

// HasPendingReset reports whether the account holds a reset token that is
// still within its validity window at the given time.
func (a *Account) HasPendingReset(now time.Time) bool {
	return a.ResetToken != nil && a.ResetTokenExpiresAt != nil && a.ResetTokenExpiresAt.After(now)
}

package model

import "time"

// Identity is a participant identity. Guests have no display name and are
// treated as anonymous; anonymous identities never accumulate history.
type Identity struct {
	ID          string    `db:"id" json:"id"`
	TokenHash   string    `db:"token_hash" json:"-"`
	DisplayName *string   `db:"display_name" json:"displayName,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Anonymous reports whether the identity should be excluded from history.
func (i *Identity) Anonymous() bool {
	return i.DisplayName == nil || *i.DisplayName == ""
}

type CreateIdentityParams struct {
	ID          string
	TokenHash   string
	DisplayName *string
}

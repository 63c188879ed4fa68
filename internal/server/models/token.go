package models

import "time"

// VerificationToken binds an emailed confirmation token to the address it was
// issued for. A token is live while its row exists; invalidation deletes every
// row for the email at once.
type VerificationToken struct {
	Email    string
	Token    string
	IssuedAt time.Time
}

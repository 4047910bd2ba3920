package auth

import (
	"strings"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the identity record. Username and email carry unique constraints;
// the database is the source of truth for uniqueness, the service pre checks
// are only there to avoid wasting a bcrypt round on a doomed registration.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	LastLoginAt   *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername trims a username. Lookups compare case insensitively,
// storage keeps the original casing.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// prepareUserDefaults fills in the fields the caller left to us: a
// deterministic id derived from the email, normalized identifiers, and the
// creation timestamp.
func prepareUserDefaults(u *User) {
	u.Email = NormalizeEmail(u.Email)
	u.Username = NormalizeUsername(u.Username)

	if u.ID == uuid.Nil {
		if id, err := hashid.NewUUID(u.Email); err == nil {
			u.ID = id
		} else {
			u.ID = uuid.New()
		}
	}

	if u.CreatedAt == nil {
		now := time.Now()
		u.CreatedAt = &now
	}
}

// Package repository declares the Identity Store contract. Implementations
// live in subpackages (sqlite, redisstore).
package repository

import (
	"context"
	"fmt"

	"github.com/sakif/jobmatch-auth/internal/model"
)

// KeyKind selects which alternate identity key an IdentityKey carries.
type KeyKind int

const (
	// KeyNameRole addresses a user by (name, role). Used by plain login.
	KeyNameRole KeyKind = iota + 1
	// KeyGoogle addresses a user by Google subject, falling back to email.
	KeyGoogle
	// KeyExternal addresses a user by Supabase user id only.
	KeyExternal
)

// IdentityKey is one of the alternate ways to look up a canonical user.
// Only the fields of its Kind are meaningful.
type IdentityKey struct {
	Kind       KeyKind
	Name       string
	Role       model.Role
	GoogleID   string
	Email      string // KeyGoogle fallback; ignored when empty
	ExternalID string
}

func NameRoleKey(name string, role model.Role) IdentityKey {
	return IdentityKey{Kind: KeyNameRole, Name: name, Role: role}
}

func GoogleKey(googleID, email string) IdentityKey {
	return IdentityKey{Kind: KeyGoogle, GoogleID: googleID, Email: email}
}

func ExternalKey(externalID string) IdentityKey {
	return IdentityKey{Kind: KeyExternal, ExternalID: externalID}
}

// String is used in logs and conflict messages.
func (k IdentityKey) String() string {
	switch k.Kind {
	case KeyNameRole:
		return fmt.Sprintf("name=%q role=%s", k.Name, k.Role)
	case KeyGoogle:
		return fmt.Sprintf("googleId=%s email=%q", k.GoogleID, k.Email)
	case KeyExternal:
		return fmt.Sprintf("externalId=%s", k.ExternalID)
	default:
		return "invalid key"
	}
}

// UserRepository is the persistent collection of canonical users.
//
// No store-level uniqueness is assumed for identity keys. Instead,
// CreateIfAbsent is a compare-and-create: it inserts only if nothing matches
// key at the moment of the write, and reports apperror.ErrConflict otherwise.
// The resolver relies on that to converge concurrent first logins.
type UserRepository interface {
	// Find returns the user addressed by key or apperror.ErrNotFound.
	// For KeyGoogle a googleId match wins over an email match; ties are
	// broken by creation order.
	Find(ctx context.Context, key IdentityKey) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateIfAbsent assigns ID and timestamps on user and inserts it,
	// unless a record matching key already exists.
	CreateIfAbsent(ctx context.Context, user *model.User, key IdentityKey) error

	// Update writes the mutable fields of user. GoogleID, ExternalID and
	// Picture are only ever filled in, never replaced or cleared.
	Update(ctx context.Context, user *model.User) error

	Ping(ctx context.Context) error
	Close() error
}

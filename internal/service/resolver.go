// Package service holds the business logic between the HTTP handlers and the
// Identity Store:
//
//	Handler (HTTP) → AuthService → Resolver → UserRepository
//	                            ↘ TokenService (JWT)
//
// Nothing in here knows about HTTP or SQL.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/jobmatch-auth/internal/apperror"
	"github.com/sakif/jobmatch-auth/internal/auth"
	"github.com/sakif/jobmatch-auth/internal/model"
	"github.com/sakif/jobmatch-auth/internal/repository"
)

// MaxResolveAttempts bounds the find → create → conflict → find loop.
// A lost create race is followed by a found-and-update, so the second
// attempt normally succeeds.
const MaxResolveAttempts = 3

// Resolver maps an identity claim from any entry path to one canonical user.
//
// It is the only writer of User records. Every write goes through
// CreateIfAbsent (compare-and-create) or an idempotent merge + Update, so
// concurrent first logins for the same identity converge on one record
// without any lock shared across requests.
type Resolver struct {
	users     repository.UserRepository
	passwords *auth.PasswordHasher
	logger    *slog.Logger
}

func NewResolver(users repository.UserRepository, passwords *auth.PasswordHasher, logger *slog.Logger) *Resolver {
	return &Resolver{
		users:     users,
		passwords: passwords,
		logger:    logger,
	}
}

// resolution is what a claim variant contributes to the shared loop: the key
// to look up, how to build a new record, and how to merge into an existing one.
type resolution struct {
	key   repository.IdentityKey
	build func() (*model.User, error)
	// merge applies the claim to u and reports whether anything changed.
	merge func(u *model.User) bool
}

// Resolve finds or creates the canonical user for claim.
//
// It never deletes and never surfaces ErrConflict: a lost create race is
// reconciled by re-reading the winner and merging into it, and a contended
// update is retried against a fresh read in the same bounded loop.
func (r *Resolver) Resolve(ctx context.Context, claim auth.Claim) (*model.User, error) {
	res, err := r.resolutionFor(claim)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= MaxResolveAttempts; attempt++ {
		existing, err := r.users.Find(ctx, res.key)
		switch {
		case err == nil:
			user, err := r.mergeExisting(ctx, claim, res, existing)
			if !errors.Is(err, apperror.ErrConflict) {
				return user, err
			}
			r.logger.Info("update conflict, reconciling",
				slog.String("path", string(claim.Path())),
				slog.String("key", res.key.String()),
				slog.Int("attempt", attempt),
			)
			continue
		case !errors.Is(err, apperror.ErrNotFound):
			return nil, err
		}

		user, err := res.build()
		if err != nil {
			return nil, err
		}

		err = r.users.CreateIfAbsent(ctx, user, res.key)
		if err == nil {
			r.logger.Info("user created",
				slog.String("userID", user.ID),
				slog.String("path", string(claim.Path())),
				slog.String("trust", string(claim.Trust())),
				slog.String("role", string(user.Role)),
			)
			return user, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}

		r.logger.Info("create conflict, reconciling",
			slog.String("path", string(claim.Path())),
			slog.String("key", res.key.String()),
			slog.Int("attempt", attempt),
		)
	}

	r.logger.Error("identity did not converge",
		slog.String("path", string(claim.Path())),
		slog.String("key", res.key.String()),
	)
	return nil, apperror.StoreUnavailable(
		"service/resolver: resolving "+res.key.String(),
		fmt.Errorf("no stable record after %d attempts", MaxResolveAttempts),
	)
}

func (r *Resolver) mergeExisting(ctx context.Context, claim auth.Claim, res resolution, u *model.User) (*model.User, error) {
	if !res.merge(u) {
		return u, nil
	}
	if err := r.users.Update(ctx, u); err != nil {
		return nil, err
	}
	r.logger.Info("user updated",
		slog.String("userID", u.ID),
		slog.String("path", string(claim.Path())),
	)
	return u, nil
}

// resolutionFor is the single dispatch point over the claim variants.
func (r *Resolver) resolutionFor(claim auth.Claim) (resolution, error) {
	switch c := claim.(type) {
	case auth.PlainClaim:
		return r.plain(c), nil
	case *auth.PlainClaim:
		return r.plain(*c), nil
	case auth.GoogleClaim:
		return google(c), nil
	case *auth.GoogleClaim:
		return google(*c), nil
	case auth.SupabaseClaim:
		return supabase(c), nil
	case *auth.SupabaseClaim:
		return supabase(*c), nil
	default:
		return resolution{}, fmt.Errorf("service/resolver: unsupported claim type %T", claim)
	}
}

// plain is login by assertion: whoever names an existing (name, role) pair
// gets that account. An existing record is returned untouched.
func (r *Resolver) plain(c auth.PlainClaim) resolution {
	return resolution{
		key: repository.NameRoleKey(c.Name, c.Role),
		build: func() (*model.User, error) {
			hash, err := r.passwords.Hash(c.Password)
			if err != nil {
				return nil, fmt.Errorf("service/resolver: hashing password: %w", err)
			}
			return &model.User{
				Name:     c.Name,
				Role:     c.Role,
				Email:    c.Email,
				Password: hash,
			}, nil
		},
		merge: func(*model.User) bool { return false },
	}
}

// google treats the provider as the source of truth for name and email.
// googleId is backfilled, picture is only set when absent.
func google(c auth.GoogleClaim) resolution {
	return resolution{
		key: repository.GoogleKey(c.Subject, c.Email),
		build: func() (*model.User, error) {
			role := model.RoleStudent
			if c.RoleHint == model.RoleEmployer {
				role = model.RoleEmployer
			}
			return &model.User{
				GoogleID: c.Subject,
				Name:     c.Name,
				Email:    c.Email,
				Picture:  c.Picture,
				Role:     role,
			}, nil
		},
		merge: func(u *model.User) bool {
			changed := false
			if u.GoogleID == "" {
				u.GoogleID = c.Subject
				changed = true
			}
			if c.Name != "" && u.Name != c.Name {
				u.Name = c.Name
				changed = true
			}
			if c.Email != "" && u.Email != c.Email {
				u.Email = c.Email
				changed = true
			}
			if u.Picture == "" && c.Picture != "" {
				u.Picture = c.Picture
				changed = true
			}
			return changed
		},
	}
}

// supabase looks up by externalId only, never by email, so a Supabase account
// is not merged into a Google one that happens to share an address. A claim
// without an email keeps the stored one.
func supabase(c auth.SupabaseClaim) resolution {
	return resolution{
		key: repository.ExternalKey(c.UserID),
		build: func() (*model.User, error) {
			role, ok := model.NormalizeRole(c.RoleHint)
			if !ok {
				role = model.RoleStudent
			}
			return &model.User{
				ExternalID: c.UserID,
				Name:       c.Name,
				Email:      c.Email,
				Role:       role,
			}, nil
		},
		merge: func(u *model.User) bool {
			changed := false
			if c.Email != "" && u.Email != c.Email {
				u.Email = c.Email
				changed = true
			}
			if c.Name != "" && u.Name != c.Name {
				u.Name = c.Name
				changed = true
			}
			return changed
		},
	}
}

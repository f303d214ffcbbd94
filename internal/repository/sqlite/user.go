package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/jobmatch-auth/internal/apperror"
	"github.com/sakif/jobmatch-auth/internal/model"
	"github.com/sakif/jobmatch-auth/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, external_id, google_id, name, email, password, picture, role, company_id, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                                    model.User
		externalID, googleID, email, pw, pic sql.NullString
		companyID                            sql.NullString
	)
	err := row.Scan(
		&u.ID,
		&externalID,
		&googleID,
		&u.Name,
		&email,
		&pw,
		&pic,
		&u.Role,
		&companyID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.ExternalID = externalID.String
	u.GoogleID = googleID.String
	u.Email = email.String
	u.Password = pw.String
	u.Picture = pic.String
	u.CompanyID = companyID.String
	return &u, nil
}

// nullable stores "" as SQL NULL so that absent keys never match each other.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// queryOne runs a single-row query and maps sql.ErrNoRows to apperror.ErrNotFound.
func (db *DB) queryOne(ctx context.Context, what, query string, args ...any) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", what)
		}
		return nil, apperror.StoreUnavailable(fmt.Sprintf("sqlite: finding user by %s", what), err)
	}
	return u, nil
}

// keyCondition renders key as a WHERE fragment plus its arguments.
// Empty key parts never match: NULL = '' is not true in SQL, and an empty
// email is skipped outright.
func keyCondition(key repository.IdentityKey) (string, []any, error) {
	switch key.Kind {
	case repository.KeyNameRole:
		return `name = ? AND role = ?`, []any{key.Name, string(key.Role)}, nil
	case repository.KeyGoogle:
		if key.Email == "" {
			return `google_id = ?`, []any{key.GoogleID}, nil
		}
		return `(google_id = ? OR email = ?)`, []any{key.GoogleID, key.Email}, nil
	case repository.KeyExternal:
		return `external_id = ?`, []any{key.ExternalID}, nil
	default:
		return "", nil, fmt.Errorf("sqlite: unsupported identity key kind %d", key.Kind)
	}
}

// Find returns the user addressed by key.
//
// For Google keys the googleId lookup runs first so a record that owns the
// Google subject always beats one that merely shares the email.
func (db *DB) Find(ctx context.Context, key repository.IdentityKey) (*model.User, error) {
	switch key.Kind {
	case repository.KeyNameRole:
		return db.queryOne(ctx, key.String(),
			`SELECT `+userColumns+` FROM users WHERE name = ? AND role = ?
			 ORDER BY created_at, id LIMIT 1`,
			key.Name, string(key.Role),
		)

	case repository.KeyGoogle:
		u, err := db.queryOne(ctx, key.String(),
			`SELECT `+userColumns+` FROM users WHERE google_id = ?
			 ORDER BY created_at, id LIMIT 1`,
			key.GoogleID,
		)
		if err == nil || !errors.Is(err, apperror.ErrNotFound) || key.Email == "" {
			return u, err
		}
		return db.GetByEmail(ctx, key.Email)

	case repository.KeyExternal:
		return db.queryOne(ctx, key.String(),
			`SELECT `+userColumns+` FROM users WHERE external_id = ?
			 ORDER BY created_at, id LIMIT 1`,
			key.ExternalID,
		)

	default:
		return nil, fmt.Errorf("sqlite: unsupported identity key kind %d", key.Kind)
	}
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.queryOne(ctx, id,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByEmail returns the oldest user with the given email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, apperror.NotFound("user", "email=")
	}
	return db.queryOne(ctx, "email="+email,
		`SELECT `+userColumns+` FROM users WHERE email = ?
		 ORDER BY created_at, id LIMIT 1`,
		email,
	)
}

// CreateIfAbsent inserts user unless a row matching key already exists.
//
// The existence check and the insert are one statement:
//
//	INSERT INTO users (...) SELECT ... WHERE NOT EXISTS (SELECT 1 FROM users WHERE <key>)
//
// SQLite runs it under its write lock, so two racing creators cannot both
// pass the check. The loser sees zero rows affected and gets ErrConflict.
func (db *DB) CreateIfAbsent(ctx context.Context, user *model.User, key repository.IdentityKey) error {
	cond, condArgs, err := keyCondition(key)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	id := xid.New().String()

	args := []any{
		id,
		nullable(user.ExternalID),
		nullable(user.GoogleID),
		user.Name,
		nullable(user.Email),
		nullable(user.Password),
		nullable(user.Picture),
		string(user.Role),
		nullable(user.CompanyID),
		now,
		now,
	}
	args = append(args, condArgs...)

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE NOT EXISTS (SELECT 1 FROM users WHERE `+cond+`)`,
		args...,
	)
	if err != nil {
		return apperror.StoreUnavailable(fmt.Sprintf("sqlite: inserting user (%s)", key), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return apperror.StoreUnavailable("sqlite: reading insert result", err)
	}
	if n == 0 {
		return apperror.Conflict("user", key.String())
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// Update writes name and email and fills in any of google_id, external_id,
// picture and password that are still empty. Role and company_id are left
// alone. user is refreshed from the stored row.
func (db *DB) Update(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()

	updated, err := scanUser(db.conn.QueryRowContext(ctx,
		`UPDATE users SET
			name        = ?,
			email       = ?,
			google_id   = COALESCE(google_id, ?),
			external_id = COALESCE(external_id, ?),
			picture     = COALESCE(picture, ?),
			password    = COALESCE(password, ?),
			updated_at  = ?
		 WHERE id = ?
		 RETURNING `+userColumns,
		user.Name,
		nullable(user.Email),
		nullable(user.GoogleID),
		nullable(user.ExternalID),
		nullable(user.Picture),
		nullable(user.Password),
		now,
		user.ID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("user", user.ID)
		}
		return apperror.StoreUnavailable(fmt.Sprintf("sqlite: updating user %s", user.ID), err)
	}

	*user = *updated
	return nil
}

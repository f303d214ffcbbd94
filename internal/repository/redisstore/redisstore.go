// Package redisstore implements the Identity Store on Redis.
//
// Layout:
//
//	user:{id}                       JSON record
//	user:idx:name:{role}:{name}     sorted set of ids, scored by creation time
//	user:idx:google:{googleId}      "
//	user:idx:email:{email}          "
//	user:idx:external:{externalId}  "
//
// Indexes are sorted sets rather than plain strings because identity keys are
// not unique at the store level. The oldest member wins on lookup.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"github.com/sakif/jobmatch-auth/internal/apperror"
	"github.com/sakif/jobmatch-auth/internal/model"
	"github.com/sakif/jobmatch-auth/internal/repository"
)

// maxUpdateRetries bounds optimistic retries when a watched key changes under Update.
const maxUpdateRetries = 5

// Store implements repository.UserRepository backed by Redis.
type Store struct {
	client redis.UniversalClient
}

var _ repository.UserRepository = (*Store)(nil)

// New wraps an existing client. The caller owns its configuration;
// Close closes it.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// record is the stored shape. model.User hides the password from JSON.
type record struct {
	ID         string     `json:"id"`
	ExternalID string     `json:"externalId,omitempty"`
	GoogleID   string     `json:"googleId,omitempty"`
	Name       string     `json:"name"`
	Email      string     `json:"email,omitempty"`
	Password   string     `json:"password,omitempty"`
	Picture    string     `json:"picture,omitempty"`
	Role       model.Role `json:"role"`
	CompanyID  string     `json:"companyId,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func toRecord(u *model.User) record {
	return record{
		ID:         u.ID,
		ExternalID: u.ExternalID,
		GoogleID:   u.GoogleID,
		Name:       u.Name,
		Email:      u.Email,
		Password:   u.Password,
		Picture:    u.Picture,
		Role:       u.Role,
		CompanyID:  u.CompanyID,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func (r record) user() *model.User {
	return &model.User{
		ID:         r.ID,
		ExternalID: r.ExternalID,
		GoogleID:   r.GoogleID,
		Name:       r.Name,
		Email:      r.Email,
		Password:   r.Password,
		Picture:    r.Picture,
		Role:       r.Role,
		CompanyID:  r.CompanyID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func userKey(id string) string { return "user:" + id }

func nameRoleIndex(name string, role model.Role) string {
	return fmt.Sprintf("user:idx:name:%s:%s", role, name)
}
func googleIndex(googleID string) string     { return "user:idx:google:" + googleID }
func emailIndex(email string) string         { return "user:idx:email:" + email }
func externalIndex(externalID string) string { return "user:idx:external:" + externalID }

// indexesFor lists every index key a record belongs to.
func indexesFor(r record) []string {
	keys := []string{nameRoleIndex(r.Name, r.Role)}
	if r.GoogleID != "" {
		keys = append(keys, googleIndex(r.GoogleID))
	}
	if r.Email != "" {
		keys = append(keys, emailIndex(r.Email))
	}
	if r.ExternalID != "" {
		keys = append(keys, externalIndex(r.ExternalID))
	}
	return keys
}

// lookupIndexes lists the index keys that a lookup by key consults, in
// priority order.
func lookupIndexes(key repository.IdentityKey) ([]string, error) {
	switch key.Kind {
	case repository.KeyNameRole:
		return []string{nameRoleIndex(key.Name, key.Role)}, nil
	case repository.KeyGoogle:
		keys := []string{googleIndex(key.GoogleID)}
		if key.Email != "" {
			keys = append(keys, emailIndex(key.Email))
		}
		return keys, nil
	case repository.KeyExternal:
		return []string{externalIndex(key.ExternalID)}, nil
	default:
		return nil, fmt.Errorf("redisstore: unsupported identity key kind %d", key.Kind)
	}
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

// reader is the part of the command set shared by the client and a *redis.Tx.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// errKeyTaken aborts a create whose watched index already has members.
var errKeyTaken = errors.New("redisstore: identity key taken")

// oldest returns the first id in index, or "" when the index is empty.
func oldest(ctx context.Context, c reader, index string) (string, error) {
	ids, err := c.ZRange(ctx, index, 0, 0).Result()
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}

func (s *Store) load(ctx context.Context, c reader, id string) (*record, error) {
	data, err := c.Get(ctx, userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.NotFound("user", id)
	}
	if err != nil {
		return nil, apperror.StoreUnavailable("redisstore: loading user "+id, err)
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, apperror.StoreUnavailable("redisstore: decoding user "+id, err)
	}
	return &r, nil
}

// Find returns the user addressed by key. Indexes are tried in priority
// order, so a googleId match beats an email match.
func (s *Store) Find(ctx context.Context, key repository.IdentityKey) (*model.User, error) {
	indexes, err := lookupIndexes(key)
	if err != nil {
		return nil, err
	}
	for _, index := range indexes {
		id, err := oldest(ctx, s.client, index)
		if err != nil {
			return nil, apperror.StoreUnavailable("redisstore: reading "+index, err)
		}
		if id == "" {
			continue
		}
		r, err := s.load(ctx, s.client, id)
		if err != nil {
			return nil, err
		}
		return r.user(), nil
	}
	return nil, apperror.NotFound("user", key.String())
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	r, err := s.load(ctx, s.client, id)
	if err != nil {
		return nil, err
	}
	return r.user(), nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, apperror.NotFound("user", "email=")
	}
	id, err := oldest(ctx, s.client, emailIndex(email))
	if err != nil {
		return nil, apperror.StoreUnavailable("redisstore: reading email index", err)
	}
	if id == "" {
		return nil, apperror.NotFound("user", "email="+email)
	}
	return s.GetUserByID(ctx, id)
}

// CreateIfAbsent watches the index keys consulted for key, checks they are
// empty and writes the record plus all of its indexes in one MULTI/EXEC.
// If another client touches a watched index in between, EXEC aborts and the
// caller gets ErrConflict, exactly as if the check had found a match.
//
// This only holds when user carries the fields of key, which is how the
// resolver builds new users.
func (s *Store) CreateIfAbsent(ctx context.Context, user *model.User, key repository.IdentityKey) error {
	watched, err := lookupIndexes(key)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	rec := toRecord(user)
	rec.ID = xid.New().String()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redisstore: encoding user: %w", err)
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		for _, index := range watched {
			n, err := tx.ZCard(ctx, index).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return errKeyTaken
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKey(rec.ID), data, 0)
			for _, index := range indexesFor(rec) {
				pipe.ZAdd(ctx, index, redis.Z{Score: score(now), Member: rec.ID})
			}
			return nil
		})
		return err
	}, watched...)

	switch {
	case err == nil:
	case errors.Is(err, errKeyTaken), errors.Is(err, redis.TxFailedErr):
		return apperror.Conflict("user", key.String())
	default:
		return apperror.StoreUnavailable(fmt.Sprintf("redisstore: creating user (%s)", key), err)
	}

	user.ID = rec.ID
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// Update overwrites name and email and fills in GoogleID, ExternalID,
// Picture and Password only where the stored record has none. Role and
// CompanyID are kept. Index membership follows the new values.
func (s *Store) Update(ctx context.Context, user *model.User) error {
	key := userKey(user.ID)

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		var merged record
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := s.load(ctx, tx, user.ID)
			if err != nil {
				return err
			}

			merged = *current
			merged.Name = user.Name
			merged.Email = user.Email
			merged.GoogleID = firstNonEmpty(current.GoogleID, user.GoogleID)
			merged.ExternalID = firstNonEmpty(current.ExternalID, user.ExternalID)
			merged.Picture = firstNonEmpty(current.Picture, user.Picture)
			merged.Password = firstNonEmpty(current.Password, user.Password)
			merged.UpdatedAt = time.Now().UTC()

			data, err := json.Marshal(merged)
			if err != nil {
				return fmt.Errorf("redisstore: encoding user: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				for _, index := range indexesFor(*current) {
					pipe.ZRem(ctx, index, current.ID)
				}
				for _, index := range indexesFor(merged) {
					pipe.ZAdd(ctx, index, redis.Z{Score: score(merged.CreatedAt), Member: merged.ID})
				}
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			var appErr *apperror.AppError
			if errors.As(err, &appErr) {
				return err
			}
			return apperror.StoreUnavailable("redisstore: updating user "+user.ID, err)
		}

		*user = *merged.user()
		return nil
	}

	return apperror.Conflict("user", "id="+user.ID)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

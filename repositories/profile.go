package repositories

import (
	"context"
	goerrors "errors"
	"huddle/domain"
	"huddle/errors"

	"github.com/dgraph-io/badger/v4"
)

const profilePrefix = "profile:"

// ProfileRepository stores display names and avatars, keyed by "profile:{id}".
// Team conversations are looked up under their synthetic counterparty id.
type ProfileRepository struct {
	db *badger.DB
}

func NewProfileRepository(db *badger.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (p *ProfileRepository) PutProfile(_ context.Context, profile domain.Profile) error {
	if profile.ID == "" {
		return errors.ErrMissingIdentity
	}
	err := p.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(profilePrefix+profile.ID), encodeProfile(profile))
	})
	return errors.Persistence(err)
}

// Profiles resolves ids in one read transaction. Unknown ids are omitted.
func (p *ProfileRepository) Profiles(_ context.Context, ids []string) (map[string]domain.Profile, error) {
	profiles := make(map[string]domain.Profile, len(ids))
	err := p.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get([]byte(profilePrefix + id))
			if goerrors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(value []byte) error {
				profile, err := decodeProfile(value)
				if err != nil {
					return err
				}
				profiles[id] = profile
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Persistence(err)
	}
	return profiles, nil
}

// Package secretstore keeps exchange credentials encrypted at rest in a
// Badger database, so operators do not have to leave passwords in plaintext
// config files on trading hosts. Encryption comes from Badger's own value-log
// and key-registry options, not from this wrapper.
package secretstore

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// Keys under which the exchange credentials are stored.
const (
	KeyAPIURL   = "blockex/api_url"
	KeyAPIID    = "blockex/api_id"
	KeyUsername = "blockex/username"
	KeyPassword = "blockex/password"
)

// Store is a small KV wrapper around an encrypted Badger database.
type Store struct {
	db *badger.DB
}

type OpenOptions struct {
	Path string
	// EncryptionKey must be 32 bytes. Nil opens the DB unencrypted, which is
	// only acceptable for throwaway test stores.
	EncryptionKey []byte
	ReadOnly      bool
}

func Open(opts OpenOptions) (*Store, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("secretstore: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithReadOnly(opts.ReadOnly)
	if len(opts.EncryptionKey) > 0 {
		// Badger requires an index cache when encryption is on.
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(100 << 20)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, errors.Wrap(err, "secretstore: open")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the value stored under key. ok is false when the key is absent.
func (s *Store) Get(key string) (value string, ok bool, err error) {
	if s == nil || s.db == nil {
		return "", false, errors.New("secretstore: not opened")
	}
	k := []byte(strings.TrimSpace(key))
	if len(k) == 0 {
		return "", false, errors.New("secretstore: key is empty")
	}
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		ok = true
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, err
	}
	return value, ok, nil
}

// Set stores value under key.
func (s *Store) Set(key, value string) error {
	if s == nil || s.db == nil {
		return errors.New("secretstore: not opened")
	}
	k := []byte(strings.TrimSpace(key))
	if len(k) == 0 {
		return errors.New("secretstore: key is empty")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, []byte(value))
	})
}

// Credentials bundles everything needed to talk to the exchange.
type Credentials struct {
	APIURL   string
	APIID    string
	Username string
	Password string
}

// SaveCredentials writes the full credential set.
func (s *Store) SaveCredentials(c Credentials) error {
	pairs := map[string]string{
		KeyAPIURL:   c.APIURL,
		KeyAPIID:    c.APIID,
		KeyUsername: c.Username,
		KeyPassword: c.Password,
	}
	for key, val := range pairs {
		if err := s.Set(key, val); err != nil {
			return err
		}
	}
	return nil
}

// LoadCredentials reads the stored credential set. Absent keys come back as
// empty strings.
func (s *Store) LoadCredentials() (Credentials, error) {
	var c Credentials
	for key, dst := range map[string]*string{
		KeyAPIURL:   &c.APIURL,
		KeyAPIID:    &c.APIID,
		KeyUsername: &c.Username,
		KeyPassword: &c.Password,
	} {
		val, _, err := s.Get(key)
		if err != nil {
			return Credentials{}, err
		}
		*dst = val
	}
	return c, nil
}

// ParseKey decodes a 32-byte encryption key from hex (with or without 0x) or
// base64. An empty input returns a nil key.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	rawHex := strings.TrimPrefix(raw, "0x")
	if b, err := hex.DecodeString(rawHex); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	return nil, errors.New("key must be 32 bytes, hex or base64 encoded")
}

// Package account persists player accounts in a semicolon-delimited line
// file. The format is shared with older tooling and must stay byte-stable:
// one account per line, username;password-hash;account-id.
package account

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/schoolerbbh/bbh-server/internal/util"
)

// ErrBadCredentials is returned when a username exists but the password
// hash does not match.
var ErrBadCredentials = errors.New("incorrect password")

// Account is one persisted player identity.
type Account struct {
	Username     string
	PasswordHash string // lowercase hex MD5 of the plaintext password
	ID           int
}

// Store is a line-file backed account registry. The file is read once at
// startup; new registrations are appended and mirrored in memory.
type Store struct {
	mu     sync.Mutex
	path   string
	byName map[string]Account
	maxID  int
	logger zerolog.Logger
}

// NewStore loads the account file at path, creating it (and its directory)
// if missing.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:   path,
		byName: make(map[string]Account),
		logger: util.ComponentLogger("accounts"),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating account directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening account file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r\n")
		if text == "" {
			continue
		}
		parts := strings.Split(text, ";")
		if len(parts) != 3 {
			s.logger.Warn().Int("line", line).Msg("skipping malformed account record")
			continue
		}
		id, err := strconv.Atoi(parts[2])
		if err != nil {
			s.logger.Warn().Int("line", line).Str("id", parts[2]).Msg("skipping account with bad id")
			continue
		}
		acc := Account{Username: parts[0], PasswordHash: parts[1], ID: id}
		s.byName[acc.Username] = acc
		if id > s.maxID {
			s.maxID = id
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading account file: %w", err)
	}

	s.logger.Info().Int("accounts", len(s.byName)).Str("path", path).Msg("account store loaded")
	return s, nil
}

// Authenticate resolves the account for username/password, registering a new
// account when the username is unknown. A wrong password on an existing
// account returns ErrBadCredentials.
func (s *Store) Authenticate(username, password string) (Account, error) {
	hash := util.MD5Hex(password)

	s.mu.Lock()
	defer s.mu.Unlock()

	if acc, ok := s.byName[username]; ok {
		if acc.PasswordHash != hash {
			return Account{}, ErrBadCredentials
		}
		return acc, nil
	}
	return s.createLocked(username, hash)
}

// Lookup returns the account for username without authenticating.
func (s *Store) Lookup(username string) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byName[username]
	return acc, ok
}

// Count returns the number of registered accounts.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byName)
}

func (s *Store) createLocked(username, hash string) (Account, error) {
	acc := Account{Username: username, PasswordHash: hash, ID: s.maxID + 1}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return Account{}, fmt.Errorf("opening account file for append: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s;%s;%d\n", acc.Username, acc.PasswordHash, acc.ID); err != nil {
		return Account{}, fmt.Errorf("appending account record: %w", err)
	}

	s.byName[username] = acc
	s.maxID = acc.ID
	s.logger.Info().Str("username", username).Int("account_id", acc.ID).Msg("registered new account")
	return acc, nil
}

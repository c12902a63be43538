package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/config"
)

const (
	stateExt     = ".state"
	stateKeyFile = ".signing_key"
)

// StateStore persists session state as HMAC-signed files. States carry
// cookies, and cookies are credentials: the signature guarantees a
// loaded state was written under this key, not planted or edited.
type StateStore struct {
	dir string
	key []byte
	log *zap.Logger
}

// stateClaims wraps the session state in a JWT claim set.
type stateClaims struct {
	jwt.RegisteredClaims
	State *schemas.SessionState `json:"state"`
}

// NewStateStore prepares the state directory. Without a configured
// signing key it falls back to a per-directory generated one, so states
// remain signed and loadable across runs on the same machine.
func NewStateStore(cfg config.StateConfig, logger *zap.Logger) (*StateStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("state dir not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	key := []byte(cfg.SigningKey)
	if len(key) == 0 {
		var err error
		if key, err = loadOrCreateKey(filepath.Join(cfg.Dir, stateKeyFile)); err != nil {
			return nil, err
		}
	}
	return &StateStore{dir: cfg.Dir, key: key, log: logger.Named("state")}, nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	if data, err := os.ReadFile(path); err == nil {
		key := []byte(strings.TrimSpace(string(data)))
		if len(key) == 0 {
			return nil, fmt.Errorf("signing key file %s is empty", path)
		}
		return key, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	key := []byte(hex.EncodeToString(raw))
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write signing key: %w", err)
	}
	return key, nil
}

// resolvePath turns a user-given name into a file path: the state
// extension is appended when missing, relative names land in the
// configured directory.
func (s *StateStore) resolvePath(name string) string {
	p := name
	if !strings.HasSuffix(p, stateExt) {
		p += stateExt
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.dir, p)
	}
	return p
}

// Save signs and writes the state, returning the file path.
func (s *StateStore) Save(name string, st *schemas.SessionState) (string, error) {
	path := s.resolvePath(name)
	now := time.Now().UTC()
	st.SavedAt = now
	claims := stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   "oil",
			IssuedAt: jwt.NewNumericDate(now),
		},
		State: st,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", &schemas.ExecError{
			Code:    schemas.CodeSerializationError,
			Message: fmt.Sprintf("failed to sign state: %v", err),
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", &schemas.ExecError{Code: schemas.CodeIOError, Message: err.Error()}
	}
	if err := os.WriteFile(path, []byte(signed), 0o600); err != nil {
		return "", &schemas.ExecError{Code: schemas.CodeIOError, Message: err.Error()}
	}
	s.log.Debug("state saved",
		zap.String("path", path),
		zap.Int("cookies", len(st.Cookies)))
	return path, nil
}

// Load reads and verifies a state file, returning the state and the
// path it was read from.
func (s *StateStore) Load(name string) (*schemas.SessionState, string, error) {
	path := s.resolvePath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", &schemas.ExecError{
				Code:    schemas.CodeIOError,
				Message: fmt.Sprintf("no state file at %s", path),
			}
		}
		return nil, "", &schemas.ExecError{Code: schemas.CodeIOError, Message: err.Error()}
	}

	var claims stateClaims
	_, err = jwt.ParseWithClaims(strings.TrimSpace(string(data)), &claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, "", &schemas.ExecError{
			Code:    schemas.CodeSerializationError,
			Message: fmt.Sprintf("state file %s is invalid or signed with a different key: %v", path, err),
		}
	}
	if claims.State == nil {
		return nil, "", &schemas.ExecError{
			Code:    schemas.CodeSerializationError,
			Message: fmt.Sprintf("state file %s carries no state", path),
		}
	}
	s.log.Debug("state loaded",
		zap.String("path", path),
		zap.Int("cookies", len(claims.State.Cookies)),
		zap.Time("saved_at", claims.State.SavedAt))
	return claims.State, path, nil
}

// Package auth implements the session/identity gate: first-run founder
// creation, handle/secret login, and the mapping from a roster entry's
// free-text role to an access level.
//
// Secrets are stored as bcrypt hashes. Rosters migrated from older
// deployments may still carry cleartext secrets; those are verified with a
// constant-time compare and transparently re-hashed on the first successful
// login.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ebenezer-ucz/ebz/internal/schema"
	"github.com/ebenezer-ucz/ebz/internal/state"
)

// ErrInvalidCredentials is the single generic login failure. Unknown handle
// and wrong secret are deliberately indistinguishable so the login surface
// does not leak which handles exist.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AccessLevel is one of the fixed authorization tiers.
type AccessLevel string

const (
	LevelAdmin        AccessLevel = "admin"
	LevelSecretariat  AccessLevel = "secretariat"
	LevelTreasurer    AccessLevel = "treasurer"
	LevelDisciplinary AccessLevel = "disciplinary"
	LevelMusicDept    AccessLevel = "music_dept"
	LevelMember       AccessLevel = "member"
)

// LevelFromRole derives the access level from a roster entry's free-text
// role by keyword matching.
func LevelFromRole(role string) AccessLevel {
	r := strings.ToLower(role)
	switch {
	case strings.Contains(r, "admin"), strings.Contains(r, "leader"):
		return LevelAdmin
	case strings.Contains(r, "secretary"):
		return LevelSecretariat
	case strings.Contains(r, "treasurer"):
		return LevelTreasurer
	case strings.Contains(r, "disciplinary"):
		return LevelDisciplinary
	case strings.Contains(r, "media"), strings.Contains(r, "sound"), strings.Contains(r, "music"):
		return LevelMusicDept
	default:
		return LevelMember
	}
}

// Session identifies an authenticated user for the rest of the process.
type Session struct {
	MemberID    string      `json:"memberId"`
	Username    string      `json:"username"`
	DisplayName string      `json:"displayName"`
	Level       AccessLevel `json:"level"`
}

// Gate exposes the identity operations over the personnel collection.
type Gate struct {
	st *state.State
}

// NewGate creates the gate bound to a state container.
func NewGate(st *state.State) *Gate {
	return &Gate{st: st}
}

// FirstRun reports whether the roster is empty after bootstrap. While true
// the only available operation is CreateFounder.
func (g *Gate) FirstRun() bool {
	return g.st.Members.Len() == 0
}

// CreateFounder creates the sole initial roster entry with
// administrator-equivalent access and returns its session. Only valid on a
// first run.
func (g *Gate) CreateFounder(name, username, secret string) (Session, error) {
	if !g.FirstRun() {
		return Session{}, errors.New("roster is not empty")
	}
	if name == "" || username == "" || secret == "" {
		return Session{}, errors.New("name, username and secret are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, err
	}
	founder := schema.Member{
		ID:           schema.NewID(),
		Name:         name,
		Role:         "Team Leader",
		Status:       "Active",
		JoinedDate:   schema.Today(),
		Username:     strings.ToLower(strings.TrimSpace(username)),
		PasswordHash: string(hash),
	}
	if err := g.st.Members.Create(founder); err != nil {
		return Session{}, err
	}
	return Session{
		MemberID:    founder.ID,
		Username:    founder.Username,
		DisplayName: founder.Name,
		Level:       LevelAdmin,
	}, nil
}

// Login matches the handle case-insensitively against the roster and
// verifies the secret. Both failure modes return ErrInvalidCredentials.
func (g *Gate) Login(username, secret string) (Session, error) {
	handle := strings.ToLower(strings.TrimSpace(username))
	if handle == "" || secret == "" {
		return Session{}, ErrInvalidCredentials
	}

	var member schema.Member
	found := false
	for _, m := range g.st.Members.List() {
		if strings.ToLower(m.Username) == handle {
			member = m
			found = true
			break
		}
	}
	if !found {
		// Burn a hash comparison anyway so the timing of a miss matches
		// the timing of a wrong secret.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
		return Session{}, ErrInvalidCredentials
	}

	if !g.verify(member, secret) {
		return Session{}, ErrInvalidCredentials
	}

	return Session{
		MemberID:    member.ID,
		Username:    member.Username,
		DisplayName: member.Name,
		Level:       LevelFromRole(member.Role),
	}, nil
}

// dummyHash is a bcrypt hash of an unused secret, compared against on
// unknown handles to keep lookup timing uniform.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("ebenezer-dummy"), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// verify checks the secret against the stored hash, falling back to a
// constant-time compare of a legacy cleartext secret. A successful legacy
// login upgrades the record to a bcrypt hash in place.
func (g *Gate) verify(member schema.Member, secret string) bool {
	if member.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(secret)) == nil
	}
	if member.Password == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(member.Password), []byte(secret)) != 1 {
		return false
	}

	// Legacy cleartext secret matched: re-hash and let the sync scheduler
	// persist the upgrade.
	if hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost); err == nil {
		member.PasswordHash = string(hash)
		member.Password = ""
		_ = g.st.Members.Update(member)
	}
	return true
}

package token

import (
	"crypto/sha256"
	"time"

	"github.com/irsalhamdi/e-learning/random"
)

const (
	ScopeActivation = "activation"
	ScopeRecovery   = "recovery"
)

type Token struct {
	Plaintext string    `json:"-" db:"-"`
	Hash      []byte    `json:"-" db:"hash"`
	UserID    string    `json:"-" db:"user_id"`
	Expiry    time.Time `json:"expiry" db:"expiry"`
	Scope     string    `json:"scope" db:"scope"`
}

type TokenNew struct {
	Email string `json:"email" validate:"required,email"`
	Scope string `json:"scope" validate:"required,oneof=activation recovery"`
}

type TokenActivation struct {
	Token string `json:"token" validate:"required,len=26"`
}

type TokenRecovery struct {
	Token           string `json:"token" validate:"required,len=26"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"eqfield=Password"`
}

// Mailer delivers token plaintexts to users.
type Mailer interface {
	SendActivationToken(to, token string) error
	SendRecoveryToken(to, token string) error
}

func Generate(userID string, ttl time.Duration, scope string) (Token, error) {
	plain, err := random.StringSecure(26)
	if err != nil {
		return Token{}, err
	}

	return Token{
		Plaintext: plain,
		Hash:      Hash(plain),
		UserID:    userID,
		Expiry:    time.Now().UTC().Add(ttl),
		Scope:     scope,
	}, nil
}

func Hash(plain string) []byte {
	h := sha256.Sum256([]byte(plain))
	return h[:]
}

// Package tokenpkg creates and verifies access tokens.
//
// Tokens are issued by the marketplace identity service; the wallet only needs the
// shared symmetric key to verify them.
package tokenpkg

import (
	"fmt"
	"time"
)

// Maker is an interface for managing tokens.
type Maker interface {
	// CreateToken creates a new token for a specific subject and duration.
	CreateToken(subject string, duration time.Duration) (string, *Payload, error)
	// VerifyToken checks if the token is valid or not.
	VerifyToken(token string) (*Payload, error)
}

// Token types accepted by NewMaker.
const (
	TypePaseto = "paseto"
	TypeJWT    = "jwt"
)

// NewMaker returns the Maker for the configured token type.
func NewMaker(tokenType, symmetricKey string) (Maker, error) {
	switch tokenType {
	case TypePaseto, "":
		maker, err := NewPasetoMaker(symmetricKey)
		if err != nil {
			return nil, err
		}

		return maker, nil
	case TypeJWT:
		maker, err := NewJWTMaker(symmetricKey)
		if err != nil {
			return nil, err
		}

		return maker, nil
	}

	return nil, fmt.Errorf("unsupported token type %q", tokenType)
}

package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenResponse_Token(t *testing.T) {
	now := time.Now()

	resp := &TokenResponse{
		AccessToken:  "A1",
		RefreshToken: "R1",
		TokenType:    "bearer",
		ExpiresIn:    900,
	}

	tok := resp.Token(now)
	assert.Equal(t, "A1", tok.AccessToken)
	assert.Equal(t, "R1", tok.RefreshToken)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.Equal(t, now.Add(900*time.Second), tok.Expiry)
	assert.True(t, tok.Valid())
}

func TestTokenResponse_TokenWithoutLifetime(t *testing.T) {
	tok := (&TokenResponse{AccessToken: "A1"}).Token(time.Now())

	assert.True(t, tok.Expiry.IsZero(), "no expires_in must yield a non-expiring token")
	assert.True(t, tok.Valid())
}

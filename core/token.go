package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	SessionTokenTag = "cli_session_"
	APIKeyTokenTag  = "api_key_"

	tokenRandomBytes = 32
	// TokenPrefixLength is how much of a raw token is stored alongside the
	// digest as a lookup index. The prefix narrows candidates; it never
	// authenticates on its own.
	TokenPrefixLength = 20
)

type TokenKind string

const (
	TokenKindSession  TokenKind = "session"
	TokenKindAPIKey   TokenKind = "api_key"
	TokenKindPlatform TokenKind = "platform"
	TokenKindUnknown  TokenKind = "unknown"
)

// GenerateSessionToken returns a fresh CLI session token: the literal tag
// followed by 64 lowercase hex characters from 32 random bytes.
func GenerateSessionToken() (string, error) {
	return generateTaggedToken(SessionTokenTag)
}

// GenerateAPIKeyToken returns a fresh API key secret in the same shape as
// session tokens but with its own tag.
func GenerateAPIKeyToken() (string, error) {
	return generateTaggedToken(APIKeyTokenTag)
}

func generateTaggedToken(tag string) (string, error) {
	raw := make([]byte, tokenRandomBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate token: %w", err)
	}
	return tag + hex.EncodeToString(raw), nil
}

// TokenPrefix returns the non-secret index slice of a raw token. Too-short
// values return empty, which never matches a stored prefix.
func TokenPrefix(token string) string {
	token = strings.TrimSpace(token)
	if len(token) < TokenPrefixLength {
		return ""
	}
	return token[:TokenPrefixLength]
}

// ClassifyToken buckets a presented bearer value by its literal tag. Values
// with neither tag are treated as platform session identifiers; the session
// lookup decides whether one actually exists.
func ClassifyToken(token string) TokenKind {
	token = strings.TrimSpace(token)
	switch {
	case token == "":
		return TokenKindUnknown
	case strings.HasPrefix(token, SessionTokenTag):
		if validTokenBody(token[len(SessionTokenTag):]) {
			return TokenKindSession
		}
		return TokenKindUnknown
	case strings.HasPrefix(token, APIKeyTokenTag):
		if validTokenBody(token[len(APIKeyTokenTag):]) {
			return TokenKindAPIKey
		}
		return TokenKindUnknown
	default:
		return TokenKindPlatform
	}
}

func validTokenBody(body string) bool {
	if len(body) != tokenRandomBytes*2 {
		return false
	}
	for _, r := range body {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

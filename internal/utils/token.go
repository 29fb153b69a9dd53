package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewAccessToken generates an opaque capability token for invite,
// collaborator and guest links. Tokens are bearer strings looked up in the
// database, not verified claims, so uniqueness is all that matters here.
func NewAccessToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

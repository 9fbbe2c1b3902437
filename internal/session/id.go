package session

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func NewSessionID() string {
	return fmt.Sprintf("sess_%s", uuid.New().String())
}

func NewMessageID() string {
	return fmt.Sprintf("msg_%s", uuid.New().String())
}

// IsSessionID reports whether id carries the session prefix. Restored
// historical sessions may use foreign id formats, so this is advisory only.
func IsSessionID(id string) bool {
	return strings.HasPrefix(id, "sess_")
}

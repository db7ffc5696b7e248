package common

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID generates a UUID with an optional prefix
func GenerateUUID(prefix string) string {
	id := uuid.New()
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(id.String(), "-", ""))
	}
	return id.String()
}

// GenerateEventID generates an audit event ID with "evt" prefix
func GenerateEventID() string {
	return GenerateUUID("evt")
}

// GenerateRequestID generates a validation request ID with "req" prefix
func GenerateRequestID() string {
	return GenerateUUID("req")
}

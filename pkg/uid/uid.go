// Package uid generates the identifiers used to correlate a chat request
// across logs.
package uid

import "github.com/google/uuid"

// New generates a new unique identifier.
func New() string {
	return uuid.New().String()
}

// Package uuidutil generates the identifiers carried by assignments.
package uuidutil

import "github.com/google/uuid"

// NewV5 derives a name-based (SHA-1) UUID from the DNS namespace and name.
// The result depends only on name.
func NewV5(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(name)).String()
}

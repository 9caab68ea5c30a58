// Package models holds the displayable identity record and the helpers that
// derive it from certificates returned by the identity wallet.
package models

import (
	"regexp"
	"strings"

	pstrings "idsearch/pkg/platform/strings"
)

// Identity is the presentation-ready record for one certified subject. The
// search pipeline treats it as an opaque unit of cached data.
type Identity struct {
	Name           string `json:"name"`
	AvatarURL      string `json:"avatarURL"`
	AbbreviatedKey string `json:"abbreviatedKey"`
	IdentityKey    string `json:"identityKey"`
	BadgeIconURL   string `json:"badgeIconURL"`
	BadgeLabel     string `json:"badgeLabel"`
	BadgeClickURL  string `json:"badgeClickURL"`
}

const (
	defaultName          = "Unknown Identity"
	defaultAvatarURL     = "XUUB8bbn9fEthk15Ge3zTQXypUShfC94vFjp65v7u5CQ8qkpxzst"
	defaultBadgeIconURL  = "XUUV39HVPkpmMzYNTx7rpKzJvXfeiVyQWg2vfSpjBAuhunTCA9uG"
	defaultBadgeLabel    = "Not verified by anyone you trust."
	defaultBadgeClickURL = "https://projectbabbage.com/docs/unknown-identity"

	// CustomIdentityName labels the synthetic option offered for a raw key.
	CustomIdentityName = "Custom Identity Key"
)

// DefaultIdentity is shown when a key resolves to nothing.
func DefaultIdentity() Identity {
	return Identity{
		Name:          defaultName,
		AvatarURL:     defaultAvatarURL,
		BadgeIconURL:  defaultBadgeIconURL,
		BadgeLabel:    defaultBadgeLabel,
		BadgeClickURL: defaultBadgeClickURL,
	}
}

// UnknownIdentity is DefaultIdentity carrying the key that was looked up.
func UnknownIdentity(identityKey string) Identity {
	id := DefaultIdentity()
	id.IdentityKey = identityKey
	id.AbbreviatedKey = AbbreviateKey(identityKey)
	return id
}

// IsDefault reports whether id is an unresolved placeholder.
func (id Identity) IsDefault() bool {
	return id.Name == "" || id.Name == defaultName
}

var identityKeyPattern = regexp.MustCompile(`^(02|03|04)[0-9a-fA-F]{64}$`)

// IsIdentityKey reports whether s is a hex public key: 66 characters with a
// 02, 03 or 04 prefix.
func IsIdentityKey(s string) bool {
	return identityKeyPattern.MatchString(s)
}

// Truncate shortens text to maxLength characters followed by "...".
func Truncate(text string, maxLength int) string {
	runes := []rune(text)
	if maxLength < 0 || len(runes) <= maxLength {
		return text
	}
	return string(runes[:maxLength]) + "..."
}

// AbbreviateKey returns the first ten characters of a key followed by an ellipsis.
func AbbreviateKey(identityKey string) string {
	if len(identityKey) <= 10 {
		return identityKey
	}
	return identityKey[:10] + "…"
}

// Dedupe keeps the first identity for every identity key.
func Dedupe(identities []Identity) []Identity {
	return pstrings.DedupeBy(identities, func(id Identity) string { return id.IdentityKey })
}

// FilterOptions narrows results to those whose name or key contains input,
// case-insensitively. When nothing matches, input is a well-formed identity
// key and no search is running, a single synthetic option for the raw key is
// returned so the user can still pick it.
func FilterOptions(results []Identity, input string, loading bool) []Identity {
	lower := strings.ToLower(input)
	filtered := make([]Identity, 0, len(results))
	for _, r := range results {
		if strings.Contains(strings.ToLower(r.Name), lower) ||
			strings.Contains(strings.ToLower(r.IdentityKey), lower) {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 && IsIdentityKey(input) && !loading {
		custom := UnknownIdentity(input)
		custom.Name = CustomIdentityName
		return []Identity{custom}
	}
	return filtered
}

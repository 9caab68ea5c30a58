package models

import (
	"fmt"
	"sort"
	"strings"
)

// Known certificate type identifiers issued by the public certifiers.
const (
	CertTypeIdentiCert = "z40BOInXkI8m7f/wBrv4MJ09bZfzZbTj2fJqCtONqCY="
	CertTypeDiscord    = "2TgqRC35B1zehGmB21xveZNc7i5iqHc0uxMb+1NMPW4="
	CertTypePhone      = "mffUklUzxbHr65xLohn0hRL0Tq2GjW1GYF/OPfzqJ6A="
	CertTypeX          = "vdDWvftf1H+5+ZprUw123kjHlywH+v20aPQTuXgMpNc="
	CertTypeRegistrant = "YoPsbfR6YQczjzPdHCoGC7nJsOdPQR50+SYqcWpJ0y0="
	CertTypeEmail      = "exOl3KM0dIJ04EW5pZgbZmPag6MdJXd3/a1enmUU/BA="
)

// Certifier is the party that signed a certificate.
type Certifier struct {
	Name        string `json:"name"`
	IconURL     string `json:"iconUrl"`
	PublicKey   string `json:"publicKey"`
	Description string `json:"description,omitempty"`
	Trust       int    `json:"trust,omitempty"`
}

// Certificate is a verified certificate as returned by the identity wallet,
// with the fields the caller is allowed to see already decrypted.
type Certificate struct {
	Type            string            `json:"type"`
	Subject         string            `json:"subject"`
	Certifier       Certifier         `json:"certifierInfo"`
	DecryptedFields map[string]string `json:"decryptedFields"`
}

const profilePhotoField = "profilePhoto"

// nameFieldOrder fixes the order in which decrypted fields make up a display
// name. Unlisted fields follow in lexical order.
var nameFieldOrder = []string{"firstName", "lastName", "userName", "name", "email", "phoneNumber"}

// CertifierTooltip describes what the certifier vouched for.
func CertifierTooltip(certifier Certifier, certificateType string) string {
	switch certificateType {
	case CertTypeDiscord:
		return fmt.Sprintf("Discord account certified by %s", certifier.Name)
	case CertTypeX:
		return fmt.Sprintf("X (Twitter) account certified by %s", certifier.Name)
	case CertTypePhone:
		return fmt.Sprintf("Phone number certified by %s", certifier.Name)
	case CertTypeEmail:
		return fmt.Sprintf("Email address certified by %s", certifier.Name)
	default:
		return fmt.Sprintf("Certified by %s", certifier.Name)
	}
}

func badgeClickURL(certificateType string) string {
	switch certificateType {
	case CertTypeIdentiCert:
		return "https://identicert.me"
	case CertTypeDiscord, CertTypeX, CertTypePhone, CertTypeEmail:
		return "https://socialcert.net"
	default:
		return defaultBadgeClickURL
	}
}

// DisplayName joins every decrypted field except the profile photo.
func DisplayName(fields map[string]string) string {
	seen := make(map[string]struct{}, len(nameFieldOrder))
	parts := make([]string, 0, len(fields))
	for _, k := range nameFieldOrder {
		seen[k] = struct{}{}
		if v := strings.TrimSpace(fields[k]); v != "" {
			parts = append(parts, v)
		}
	}

	rest := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := seen[k]; ok || k == profilePhotoField {
			continue
		}
		rest = append(rest, k)
	}
	sort.Strings(rest)
	for _, k := range rest {
		if v := strings.TrimSpace(fields[k]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// FromCertificate converts a certificate into a displayable identity.
func FromCertificate(c Certificate) Identity {
	id := Identity{
		Name:           DisplayName(c.DecryptedFields),
		AvatarURL:      c.DecryptedFields[profilePhotoField],
		IdentityKey:    c.Subject,
		AbbreviatedKey: AbbreviateKey(c.Subject),
		BadgeIconURL:   c.Certifier.IconURL,
		BadgeLabel:     CertifierTooltip(c.Certifier, c.Type),
		BadgeClickURL:  badgeClickURL(c.Type),
	}
	if id.Name == "" {
		id.Name = defaultName
	}
	if id.AvatarURL == "" {
		id.AvatarURL = defaultAvatarURL
	}
	return id
}

// FromCertificates converts a batch, preserving order.
func FromCertificates(certs []Certificate) []Identity {
	out := make([]Identity, 0, len(certs))
	for _, c := range certs {
		out = append(out, FromCertificate(c))
	}
	return out
}

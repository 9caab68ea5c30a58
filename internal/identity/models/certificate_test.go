package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCertifierTooltip(t *testing.T) {
	certifier := Certifier{Name: "SocialCert"}

	tests := []struct {
		certType string
		want     string
	}{
		{CertTypeDiscord, "Discord account certified by SocialCert"},
		{CertTypeX, "X (Twitter) account certified by SocialCert"},
		{CertTypePhone, "Phone number certified by SocialCert"},
		{CertTypeEmail, "Email address certified by SocialCert"},
		{CertTypeIdentiCert, "Certified by SocialCert"},
		{"unknown", "Certified by SocialCert"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, CertifierTooltip(certifier, tt.certType))
		})
	}
}

func TestDisplayName(t *testing.T) {
	t.Run("skips profile photo and orders known fields", func(t *testing.T) {
		fields := map[string]string{
			"profilePhoto": "uhrp://photo",
			"lastName":     "Smith",
			"firstName":    "Alice",
		}
		assert.Equal(t, "Alice Smith", DisplayName(fields))
	})

	t.Run("unknown fields follow in lexical order", func(t *testing.T) {
		fields := map[string]string{
			"userName": "@alice",
			"zeta":     "z",
			"alpha":    "a",
		}
		assert.Equal(t, "@alice a z", DisplayName(fields))
	})

	t.Run("blank values are ignored", func(t *testing.T) {
		assert.Equal(t, "Alice", DisplayName(map[string]string{"firstName": "Alice", "lastName": "  "}))
	})
}

func TestFromCertificate(t *testing.T) {
	cert := Certificate{
		Type:    CertTypeDiscord,
		Subject: aliceKey,
		Certifier: Certifier{
			Name:    "SocialCert",
			IconURL: "uhrp://socialcert-icon",
		},
		DecryptedFields: map[string]string{
			"userName":     "alice#1234",
			"profilePhoto": "uhrp://alice",
		},
	}

	id := FromCertificate(cert)

	assert.Equal(t, "alice#1234", id.Name)
	assert.Equal(t, "uhrp://alice", id.AvatarURL)
	assert.Equal(t, aliceKey, id.IdentityKey)
	assert.Equal(t, "0240c42181…", id.AbbreviatedKey)
	assert.Equal(t, "uhrp://socialcert-icon", id.BadgeIconURL)
	assert.Equal(t, "Discord account certified by SocialCert", id.BadgeLabel)
	assert.Equal(t, "https://socialcert.net", id.BadgeClickURL)
}

func TestFromCertificate_EmptyFieldsFallBackToDefaults(t *testing.T) {
	id := FromCertificate(Certificate{Subject: aliceKey, Certifier: Certifier{Name: "X"}})

	assert.Equal(t, "Unknown Identity", id.Name)
	assert.Equal(t, defaultAvatarURL, id.AvatarURL)
	assert.Equal(t, "Certified by X", id.BadgeLabel)
}

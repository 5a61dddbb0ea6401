// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

// Package anonymize one-way hashes client identifiers and coarsens device
// metadata before anything reaches storage. Raw identifiers never leave
// this package.
package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashPrefix marks an identifier as already anonymized. Hashing is
// idempotent: a prefixed identifier passes through unchanged, so clients
// may pre-hash on device without double hashing server-side.
const HashPrefix = "anon_"

// hashHexLen is the number of hex characters kept from the SHA-256 digest.
// 16 hex chars (64 bits) keeps collisions negligible at city scale while
// making digest reversal no easier.
const hashHexLen = 16

// Anonymizer hashes user and session identifiers with per-class salts.
// Distinct salts keep the two hash spaces unlinkable: the same raw value
// used as both a user ID and a session ID produces unrelated hashes.
type Anonymizer struct {
	userSalt    string
	sessionSalt string
}

// New creates an Anonymizer with the given salts.
func New(userSalt, sessionSalt string) *Anonymizer {
	return &Anonymizer{userSalt: userSalt, sessionSalt: sessionSalt}
}

// UserHash anonymizes a raw user identifier. Empty in, empty out.
func (a *Anonymizer) UserHash(id string) string {
	return hashIdentifier(id, a.userSalt)
}

// SessionHash anonymizes a raw session identifier. Empty in, empty out.
func (a *Anonymizer) SessionHash(id string) string {
	return hashIdentifier(id, a.sessionSalt)
}

// hashIdentifier computes HashPrefix + hex(sha256(id+salt))[:hashHexLen].
func hashIdentifier(id, salt string) string {
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, HashPrefix) {
		return id
	}
	sum := sha256.Sum256([]byte(id + salt))
	return HashPrefix + hex.EncodeToString(sum[:])[:hashHexLen]
}

// LooksAnonymized reports whether an identifier carries the hash prefix.
func LooksAnonymized(id string) bool {
	return strings.HasPrefix(id, HashPrefix)
}

// SanitizeDeviceType collapses a free-form device type into one of the
// coarse classes: mobile, tablet, desktop, unknown.
func SanitizeDeviceType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mobile", "phone", "smartphone":
		return "mobile"
	case "tablet":
		return "tablet"
	case "desktop", "pc", "laptop":
		return "desktop"
	default:
		return "unknown"
	}
}

// SanitizeDeviceOS collapses a free-form OS string into a coarse family:
// Android, iOS, Windows, macOS, Linux, Unknown. Version strings and build
// numbers are discarded.
func SanitizeDeviceOS(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "android"):
		return "Android"
	case strings.Contains(s, "ios") || strings.Contains(s, "iphone") || strings.Contains(s, "ipad"):
		return "iOS"
	case strings.Contains(s, "windows"):
		return "Windows"
	case strings.Contains(s, "mac") || strings.Contains(s, "darwin"):
		return "macOS"
	case strings.Contains(s, "linux"):
		return "Linux"
	default:
		return "Unknown"
	}
}

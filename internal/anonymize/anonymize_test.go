// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

package anonymize

import (
	"strings"
	"testing"
)

func TestUserHashShape(t *testing.T) {
	a := New("user-salt", "session-salt")

	h := a.UserHash("user-42")
	if !strings.HasPrefix(h, HashPrefix) {
		t.Errorf("hash %q missing prefix %q", h, HashPrefix)
	}
	if len(h) != len(HashPrefix)+hashHexLen {
		t.Errorf("hash length = %d, want %d", len(h), len(HashPrefix)+hashHexLen)
	}
	for _, c := range h[len(HashPrefix):] {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("hash %q contains non-hex rune %q", h, c)
		}
	}
}

func TestHashDeterministic(t *testing.T) {
	a := New("user-salt", "session-salt")
	if a.UserHash("user-42") != a.UserHash("user-42") {
		t.Error("same input hashed to different values")
	}
	if a.UserHash("user-42") == a.UserHash("user-43") {
		t.Error("distinct inputs collided")
	}
}

func TestHashIdempotent(t *testing.T) {
	a := New("user-salt", "session-salt")
	once := a.UserHash("user-42")
	if twice := a.UserHash(once); twice != once {
		t.Errorf("re-hashing changed the value: %q -> %q", once, twice)
	}
}

func TestUserAndSessionSpacesUnlinkable(t *testing.T) {
	a := New("user-salt", "session-salt")
	if a.UserHash("shared-id") == a.SessionHash("shared-id") {
		t.Error("user and session hashes of the same raw value must differ")
	}
}

func TestSaltChangesHash(t *testing.T) {
	a := New("salt-a", "s")
	b := New("salt-b", "s")
	if a.UserHash("user-42") == b.UserHash("user-42") {
		t.Error("different salts produced identical hashes")
	}
}

func TestEmptyIdentifier(t *testing.T) {
	a := New("user-salt", "session-salt")
	if got := a.UserHash(""); got != "" {
		t.Errorf("empty identifier hashed to %q, want empty", got)
	}
	if got := a.SessionHash(""); got != "" {
		t.Errorf("empty identifier hashed to %q, want empty", got)
	}
}

func TestLooksAnonymized(t *testing.T) {
	if !LooksAnonymized("anon_deadbeefdeadbeef") {
		t.Error("prefixed value should look anonymized")
	}
	if LooksAnonymized("user-42") {
		t.Error("raw value should not look anonymized")
	}
}

func TestSanitizeDeviceType(t *testing.T) {
	tests := []struct{ in, want string }{
		{"mobile", "mobile"},
		{"Phone", "mobile"},
		{"SMARTPHONE", "mobile"},
		{"tablet", "tablet"},
		{"Desktop", "desktop"},
		{"laptop", "desktop"},
		{"", "unknown"},
		{"smart-fridge", "unknown"},
	}
	for _, tt := range tests {
		if got := SanitizeDeviceType(tt.in); got != tt.want {
			t.Errorf("SanitizeDeviceType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeDeviceOS(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Android 14", "Android"},
		{"iOS 17.4", "iOS"},
		{"iPhone OS", "iOS"},
		{"Windows 11", "Windows"},
		{"macOS Sonoma", "macOS"},
		{"darwin", "macOS"},
		{"Ubuntu Linux", "Linux"},
		{"", "Unknown"},
		{"TempleOS", "Unknown"},
	}
	for _, tt := range tests {
		if got := SanitizeDeviceOS(tt.in); got != tt.want {
			t.Errorf("SanitizeDeviceOS(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

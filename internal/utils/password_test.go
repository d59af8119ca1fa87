package utils

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	password := "testpassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if hash == "" {
		t.Error("HashPassword() returned empty string")
	}

	if hash == password {
		t.Error("HashPassword() should not return plaintext password")
	}

	if len(hash) < 50 {
		t.Errorf("hash seems too short: %d chars", len(hash))
	}
}

func TestHashPassword_DifferentHashes(t *testing.T) {
	password := "testpassword"

	hash1, _ := HashPassword(password)
	hash2, _ := HashPassword(password)

	if hash1 == hash2 {
		t.Error("same password should produce different hashes (due to salt)")
	}
}

func TestCheckPassword(t *testing.T) {
	password := "correctpassword"
	hash, _ := HashPassword(password)

	tests := []struct {
		name     string
		password string
		expected bool
	}{
		{"correct password", "correctpassword", true},
		{"wrong password", "wrongpassword", false},
		{"empty password", "", false},
		{"similar password", "correctpassword1", false},
		{"case sensitive", "CorrectPassword", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckPassword(tt.password, hash)
			if result != tt.expected {
				t.Errorf("CheckPassword(%q) = %v, expected %v", tt.password, result, tt.expected)
			}
		})
	}
}

func TestCheckPassword_InvalidHash(t *testing.T) {
	if CheckPassword("password", "invalid_hash") {
		t.Error("CheckPassword should return false for invalid hash")
	}
	if CheckPassword("password", "") {
		t.Error("CheckPassword should return false for empty hash")
	}
}

func TestSetBcryptCost_OutOfRange(t *testing.T) {
	if err := SetBcryptCost(bcrypt.MaxCost + 1); err == nil {
		t.Error("SetBcryptCost should reject cost above MaxCost")
	}
	if err := SetBcryptCost(2); err == nil {
		t.Error("SetBcryptCost should reject cost below MinCost")
	}
}

func TestNeedsRehash(t *testing.T) {
	oldCost, oldDummy := bcryptCost, dummyHash
	defer func() { bcryptCost, dummyHash = oldCost, oldDummy }()

	if err := SetBcryptCost(bcrypt.MinCost); err != nil {
		t.Fatalf("SetBcryptCost() error = %v", err)
	}
	hash, err := HashPassword("upgrade-me")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if NeedsRehash(hash) {
		t.Error("hash at current cost should not need rehash")
	}

	if err := SetBcryptCost(bcrypt.MinCost + 1); err != nil {
		t.Fatalf("SetBcryptCost() error = %v", err)
	}
	if !NeedsRehash(hash) {
		t.Error("hash below current cost should need rehash")
	}

	if NeedsRehash("not-a-bcrypt-hash") {
		t.Error("invalid hash should not report needing rehash")
	}
}

func TestDummyHash_IsValidBcrypt(t *testing.T) {
	if _, err := bcrypt.Cost([]byte(DummyHash())); err != nil {
		t.Errorf("DummyHash() is not a parseable bcrypt hash: %v", err)
	}
}

// The dummy verification only equalizes the unknown-email and wrong-password
// timings if the dummy hash carries the same cost as real hashes.
func TestDummyHash_TracksConfiguredCost(t *testing.T) {
	oldCost, oldDummy := bcryptCost, dummyHash
	defer func() { bcryptCost, dummyHash = oldCost, oldDummy }()

	for _, cost := range []int{bcrypt.MinCost, bcrypt.MinCost + 2} {
		if err := SetBcryptCost(cost); err != nil {
			t.Fatalf("SetBcryptCost(%d) error = %v", cost, err)
		}
		got, err := bcrypt.Cost([]byte(DummyHash()))
		if err != nil {
			t.Fatalf("DummyHash() not parseable at cost %d: %v", cost, err)
		}
		if got != cost {
			t.Errorf("dummy hash cost = %d, expected configured cost %d", got, cost)
		}

		real, err := HashPassword("some-password")
		if err != nil {
			t.Fatalf("HashPassword() error = %v", err)
		}
		realCost, _ := bcrypt.Cost([]byte(real))
		if realCost != got {
			t.Errorf("dummy cost %d differs from real hash cost %d", got, realCost)
		}
	}
}

func TestDummyHash_UnchangedByRejectedCost(t *testing.T) {
	before := DummyHash()
	if err := SetBcryptCost(bcrypt.MaxCost + 1); err == nil {
		t.Fatal("SetBcryptCost should reject cost above MaxCost")
	}
	if DummyHash() != before {
		t.Error("rejected cost must not regenerate the dummy hash")
	}
}

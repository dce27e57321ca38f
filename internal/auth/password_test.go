package auth

import (
	"errors"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword() = %v", err)
	}
	if hash == "secret123" {
		t.Fatal("password stored in plaintext")
	}

	other, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword() = %v", err)
	}
	if hash == other {
		t.Error("hashes are not salted")
	}

	if err := CheckPassword(hash, "secret123"); err != nil {
		t.Errorf("CheckPassword(correct) = %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("CheckPassword(wrong) = %v, want ErrPasswordMismatch", err)
	}
	if err := CheckPassword("", "anything"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("CheckPassword(empty hash) = %v, want ErrPasswordMismatch", err)
	}
}

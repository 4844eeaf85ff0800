package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/technoelf/stomata/internal/auth"
)

func TestAuthenticator_Authenticate(t *testing.T) {
	a := NewAuthenticator(newFakeStore(map[int64]string{7: "good"}), fakeVerify)

	tests := []struct {
		name    string
		payload string
		wantID  int64
		want    HandshakeResult
	}{
		{"valid", `{"id":7,"token":"good"}`, 7, HandshakeAccepted},
		{"extra fields ignored", `{"id":7,"token":"good","fw":"1.2"}`, 7, HandshakeAccepted},
		{"wrong token", `{"id":7,"token":"bad"}`, 7, HandshakeRejected},
		{"unknown station", `{"id":8,"token":"good"}`, 8, HandshakeUnknown},
		{"not json", `hello`, 0, HandshakeMalformed},
		{"missing token", `{"id":7}`, 0, HandshakeMalformed},
		{"missing id", `{"token":"good"}`, 0, HandshakeMalformed},
		{"id as string", `{"id":"7","token":"good"}`, 0, HandshakeMalformed},
		{"fractional id", `{"id":7.5,"token":"good"}`, 0, HandshakeMalformed},
		{"empty", ``, 0, HandshakeMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, result := a.Authenticate(context.Background(), []byte(tt.payload))
			if result != tt.want {
				t.Fatalf("Authenticate(%s) result = %s, want %s", tt.payload, result, tt.want)
			}
			if result == HandshakeAccepted && id != tt.wantID {
				t.Errorf("Authenticate(%s) id = %d, want %d", tt.payload, id, tt.wantID)
			}
		})
	}
}

func TestAuthenticator_StoreAndVerifierErrors(t *testing.T) {
	store := newFakeStore(map[int64]string{1: "tok"})
	store.err = errors.New("disk on fire")
	a := NewAuthenticator(store, fakeVerify)

	if _, result := a.Authenticate(context.Background(), []byte(`{"id":1,"token":"tok"}`)); result != HandshakeError {
		t.Errorf("store error result = %s, want %s", result, HandshakeError)
	}

	failing := func(int64, string, string) (bool, error) { return true, errors.New("bad hash") }
	a = NewAuthenticator(newFakeStore(map[int64]string{1: "tok"}), failing)
	if _, result := a.Authenticate(context.Background(), []byte(`{"id":1,"token":"tok"}`)); result != HandshakeError {
		t.Errorf("verifier error result = %s, want %s", result, HandshakeError)
	}
}

func TestAuthenticator_DefaultVerifier(t *testing.T) {
	hash, err := auth.HashWithParams([]byte("11:secret"), auth.Params{Time: 1, Memory: 8, Threads: 1, KeyLen: 16, SaltLen: 8})
	if err != nil {
		t.Fatalf("HashWithParams() error = %v", err)
	}
	store := &fakeStore{hashes: map[int64]string{11: hash}}
	a := NewAuthenticator(store, nil)

	if _, result := a.Authenticate(context.Background(), []byte(`{"id":11,"token":"secret"}`)); result != HandshakeAccepted {
		t.Errorf("result = %s, want accepted", result)
	}
	if _, result := a.Authenticate(context.Background(), []byte(`{"id":11,"token":"guess"}`)); result != HandshakeRejected {
		t.Errorf("result = %s, want rejected", result)
	}
}

package internal

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// passwordCheckServer accepts only the given password on the
// check-password endpoint and counts the attempts.
func passwordCheckServer(t *testing.T, accept string) (*AccessGate, *int) {
	t.Helper()
	attempts := new(int)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/check-password") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		*attempts++
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_ = json.NewEncoder(w).Encode(payload["password"] == accept)
	}))
	t.Cleanup(server.Close)
	api := NewAPIClient(server.URL)
	return NewAccessGate(api, zerolog.Nop()), attempts
}

func TestGateOpenRoomGrantsImmediately(t *testing.T) {
	gate, attempts := passwordCheckServer(t, "secret")
	gate.Reset("r1")

	if err := gate.Check(&Room{ID: "r1", Name: "open"}); err != nil {
		t.Fatalf("open room must grant, got %v", err)
	}
	if !gate.Granted("r1") {
		t.Fatal("grant not recorded")
	}
	if *attempts != 0 {
		t.Fatal("open room must not hit the password endpoint")
	}
}

func TestGateProtectedRoomRequiresPassword(t *testing.T) {
	gate, _ := passwordCheckServer(t, "secret")
	gate.Reset("r1")

	err := gate.Check(&Room{ID: "r1", HasPassword: true})
	if !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("expected ErrPasswordRequired, got %v", err)
	}
	if gate.Granted("r1") {
		t.Fatal("gate must stay closed before a password is accepted")
	}
}

func TestGateWrongPasswordKeepsGateClosed(t *testing.T) {
	gate, attempts := passwordCheckServer(t, "secret")
	gate.Reset("r1")
	_ = gate.Check(&Room{ID: "r1", HasPassword: true})

	if err := gate.SubmitPassword("nope"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if gate.Granted("r1") {
		t.Fatal("wrong password must not open the gate")
	}

	// unlimited retries, the right password eventually opens it
	if err := gate.SubmitPassword("secret"); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}
	if !gate.Granted("r1") {
		t.Fatal("gate must open after remote confirmation")
	}
	if *attempts != 2 {
		t.Fatalf("expected 2 remote checks, got %d", *attempts)
	}
}

func TestGateRestoreOnlyAppliesToCurrentRoom(t *testing.T) {
	gate, attempts := passwordCheckServer(t, "secret")
	gate.Reset("r1")

	// a stale grant for another room must not leak in
	gate.Restore("r2")
	if err := gate.Check(&Room{ID: "r1", HasPassword: true}); !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("expected ErrPasswordRequired, got %v", err)
	}

	gate.Restore("r1")
	if err := gate.Check(&Room{ID: "r1", HasPassword: true}); err != nil {
		t.Fatalf("restored grant must pass the gate, got %v", err)
	}
	if *attempts != 0 {
		t.Fatal("restore must not hit the password endpoint")
	}
}

func TestGateResetDiscardsGrantOnRoomSwitch(t *testing.T) {
	gate, _ := passwordCheckServer(t, "secret")
	gate.Reset("r1")
	_ = gate.Check(&Room{ID: "r1"})
	if !gate.Granted("r1") {
		t.Fatal("setup: grant expected")
	}

	gate.Reset("r2")
	if gate.Granted("r1") || gate.Granted("r2") {
		t.Fatal("switching rooms must discard the previous grant")
	}
}

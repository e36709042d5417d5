package storage

import (
	"bytes"
	"testing"
	"time"

	"github.com/tenx/certdash/internal/cryptoutil"
)

func TestEnvelope(t *testing.T) {
	key, _ := cryptoutil.NewKey()
	plain := []byte(`{"auth":{"user":null}}`)
	aad := []byte("persist:root")

	env, err := SealRecord(key, plain, aad)
	if err != nil {
		t.Fatalf("SealRecord failed: %v", err)
	}

	if env.Ver != 1 {
		t.Errorf("expected version 1, got %d", env.Ver)
	}
	if env.Scheme != SchemeAES256GCM {
		t.Errorf("expected scheme %s, got %s", SchemeAES256GCM, env.Scheme)
	}

	decrypted, err := OpenRecord(key, env, aad)
	if err != nil {
		t.Fatalf("OpenRecord failed: %v", err)
	}

	if !bytes.Equal(plain, decrypted) {
		t.Errorf("expected %s, got %s", plain, decrypted)
	}

	t.Run("WrongAAD", func(t *testing.T) {
		_, err := OpenRecord(key, env, []byte("persist:other"))
		if err == nil {
			t.Error("expected error with wrong AAD, got nil")
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		wrongKey, _ := cryptoutil.NewKey()
		_, err := OpenRecord(wrongKey, env, aad)
		if err == nil {
			t.Error("expected error with wrong key, got nil")
		}
	})

	t.Run("UnsupportedVersion", func(t *testing.T) {
		badEnv := *env
		badEnv.Ver = 99
		_, err := OpenRecord(key, &badEnv, aad)
		if err == nil {
			t.Error("expected error with unsupported version, got nil")
		}
	})

	t.Run("UnsupportedScheme", func(t *testing.T) {
		badEnv := *env
		badEnv.Scheme = "unknown"
		_, err := OpenRecord(key, &badEnv, aad)
		if err == nil {
			t.Error("expected error with unsupported scheme, got nil")
		}
	})
}

func TestRawRecord(t *testing.T) {
	plain := []byte("plain state")
	env := RawRecord(plain)

	if env.Scheme != SchemeRaw {
		t.Errorf("expected scheme %s, got %s", SchemeRaw, env.Scheme)
	}

	// The envelope must not alias the caller's buffer.
	plain[0] = 'X'

	got, err := OpenRecord(nil, env, nil)
	if err != nil {
		t.Fatalf("OpenRecord failed: %v", err)
	}
	if string(got) != "plain state" {
		t.Errorf("expected %q, got %q", "plain state", got)
	}
}

func TestCloneEnvelope(t *testing.T) {
	if CloneEnvelope(nil) != nil {
		t.Fatal("expected nil clone of nil envelope")
	}
	env := RawRecord([]byte("abc"))
	cp := CloneEnvelope(env)
	cp.Ciphertext[0] = 'z'
	if env.Ciphertext[0] != 'a' {
		t.Error("clone shares ciphertext with original")
	}
}

func TestStamp(t *testing.T) {
	if Stamp(nil, time.Now()) != nil {
		t.Fatal("expected nil stamp of nil envelope")
	}
	env := RawRecord([]byte("abc"))
	at := time.Date(2024, 1, 13, 9, 30, 0, 123456789, time.FixedZone("CET", 3600))
	got := Stamp(env, at)
	want := time.Date(2024, 1, 13, 8, 30, 0, 123000000, time.UTC)
	if !got.Written.Equal(want) || got.Written.Location() != time.UTC {
		t.Errorf("expected %v, got %v", want, got.Written)
	}
	if !env.Written.IsZero() {
		t.Error("Stamp modified its input")
	}
}

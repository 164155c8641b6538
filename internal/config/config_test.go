package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/zsiec/ghostlink/internal/keystream"
)

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	def := Default()
	if cfg != def {
		t.Errorf("config = %+v, want defaults %+v", cfg, def)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ghostlink.yaml")
	doc := []byte(`
standard: PAL
sample_rate: 8000000
segments_per_line: 8
passphrase: "test secret"
operations:
  permutation: true
  inversion: false
  shift: true
workers: 4
`)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Standard != "PAL" {
		t.Errorf("standard = %q, want PAL", cfg.Standard)
	}
	if cfg.SampleRate != 8_000_000 {
		t.Errorf("sample rate = %d, want 8000000", cfg.SampleRate)
	}
	if cfg.SegmentsPerLine != 8 {
		t.Errorf("segments = %d, want 8", cfg.SegmentsPerLine)
	}
	if cfg.Operations.Inversion {
		t.Error("inversion should be disabled")
	}
	if !cfg.Operations.Shift {
		t.Error("shift should stay enabled")
	}
	if cfg.Workers != 4 {
		t.Errorf("workers = %d, want 4", cfg.Workers)
	}
	// Untouched fields keep their defaults.
	if cfg.Width != Default().Width {
		t.Errorf("width = %d, want default %d", cfg.Width, Default().Width)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		doc  string
	}{
		{"negative sample rate", "sample_rate: -1"},
		{"zero width", "width: 0"},
		{"zero segments", "segments_per_line: 0"},
		{"short key", "key: \"abcd\""},
		{"non-hex key", "key: \"zz\""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(tc.doc), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("invalid config should be rejected")
			}
		})
	}
}

func TestKeyResolution(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if _, err := cfg.Key(); err == nil {
		t.Error("key resolution should fail with no key material")
	}

	cfg.Passphrase = "open sesame"
	key, err := cfg.Key()
	if err != nil {
		t.Fatal(err)
	}
	if len(key) != keystream.KeySize {
		t.Fatalf("derived key is %d bytes, want %d", len(key), keystream.KeySize)
	}
	if !bytes.Equal(key, keystream.DeriveKey("open sesame")) {
		t.Error("derived key does not match passphrase derivation")
	}

	// Explicit hex key wins over the passphrase.
	cfg.KeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	key, err = cfg.Key()
	if err != nil {
		t.Fatal(err)
	}
	if key[0] != 0x00 || key[31] != 0x1f {
		t.Error("hex key not decoded correctly")
	}
}

package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/viper"

	"github.com/rbaliyan/mailstore"
	"github.com/rbaliyan/mailstore/store/blob"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRedisRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	base := []string{"--backend", "redis", "--redis.addr", mr.Addr()}
	dir := t.TempDir()

	header := "From: a@example.com\r\nSubject: hi\r\n\r\n"
	body := "hello\r\nworld\r\n"
	msgPath := writeFile(t, dir, "msg.eml", []byte(header+body))
	attData := []byte("%PDF-1.4 fake")
	attPath := writeFile(t, dir, "report.pdf", attData)

	locator := []string{"--mailbox", "inbox", "--uid", "7", "--message-id", "msg-1"}

	out, err := execute(t, append(append(append(base, "ingest"), locator...), "--attach", attPath, "--flag", `\Seen`, msgPath)...)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(out, "inbox:7(msg-1)") || !strings.Contains(out, "1 attachment(s)") {
		t.Errorf("ingest output = %q", out)
	}

	fetch := func(depth string) (string, error) {
		return execute(t, append(append(append(base, "fetch"), locator...), "--depth", depth)...)
	}

	t.Run("body", func(t *testing.T) {
		out, err := fetch("body")
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if out != body {
			t.Errorf("body = %q, want %q", out, body)
		}
	})

	t.Run("full", func(t *testing.T) {
		out, err := fetch("full")
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if out != header+body {
			t.Errorf("full = %q", out)
		}
	})

	t.Run("metadata", func(t *testing.T) {
		out, err := fetch("metadata")
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		for _, want := range []string{"body_start:    36", `\Seen`, "application/pdf", `"report.pdf"`} {
			if !strings.Contains(out, want) {
				t.Errorf("metadata missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("scan", func(t *testing.T) {
		out, err := execute(t, append(base, "scan")...)
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		want := "msg-1\t" + blob.ID(attData).String() + "\n"
		if out != want {
			t.Errorf("scan = %q, want %q", out, want)
		}
	})

	t.Run("unknown depth", func(t *testing.T) {
		if _, err := fetch("envelope"); !errors.Is(err, mailstore.ErrUnknownFetchType) {
			t.Errorf("expected ErrUnknownFetchType, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if _, err := execute(t, append(append(append(base, "delete"), locator...), "--drop-index")...); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := fetch("metadata"); !errors.Is(err, mailstore.ErrNotFound) {
			t.Errorf("fetch after delete: %v", err)
		}
		out, err := execute(t, append(base, "scan")...)
		if err != nil || out != "" {
			t.Errorf("scan after delete = %q, %v", out, err)
		}
	})
}

func TestIngestValidation(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.eml", []byte("S: a\n\nx"))
	b := writeFile(t, dir, "b.eml", []byte("S: b\n\ny"))

	if _, err := execute(t, "ingest", "--mailbox", "inbox", "--message-id", "m", a, b); err == nil {
		t.Error("expected error for --message-id with several files")
	}
	if _, err := execute(t, "ingest", "--mailbox", "inbox", "--internal-date", "yesterday", a); err == nil {
		t.Error("expected error for bad internal date")
	}
	out, err := execute(t, "ingest", "--mailbox", "inbox", "--uid", "3", a, b)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(out, "inbox:3(") || !strings.Contains(out, "inbox:4(") {
		t.Errorf("uids not consecutive:\n%s", out)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		v := viper.New()
		if err := initViper(v, ""); err != nil {
			t.Fatalf("initViper: %v", err)
		}
		cfg, err := loadConfig(v)
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.Backend != "memory" || cfg.BlobBackend != "substrate" || cfg.Compression != "zstd" || cfg.RetryAttempts != 4 {
			t.Errorf("unexpected defaults: %+v", cfg)
		}
	})

	t.Run("file and environment", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "mailstore.yaml", []byte(`
backend: redis
redis:
  addr: cache:6379
blobs:
  compression: lz4
  cache:
    ttl: 1h
`))
		t.Setenv("MAILSTORE_REDIS_DB", "3")
		v := viper.New()
		if err := initViper(v, path); err != nil {
			t.Fatalf("initViper: %v", err)
		}
		cfg, err := loadConfig(v)
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.Backend != "redis" || cfg.RedisAddr != "cache:6379" || cfg.RedisDB != 3 {
			t.Errorf("redis settings = %s %s %d", cfg.Backend, cfg.RedisAddr, cfg.RedisDB)
		}
		if cfg.Compression != "lz4" || cfg.CacheTTL.Hours() != 1 {
			t.Errorf("blob settings = %s %v", cfg.Compression, cfg.CacheTTL)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		tests := map[string]map[string]string{
			"unknown backend":   {"MAILSTORE_BACKEND": "sqlite"},
			"bucket required":   {"MAILSTORE_BLOBS_BACKEND": "s3"},
			"unknown blobs":     {"MAILSTORE_BLOBS_BACKEND": "ftp"},
			"events need redis": {"MAILSTORE_REDIS_EVENTS": "true"},
		}
		for name, env := range tests {
			t.Run(name, func(t *testing.T) {
				for k, val := range env {
					t.Setenv(k, val)
				}
				v := viper.New()
				if err := initViper(v, ""); err != nil {
					t.Fatalf("initViper: %v", err)
				}
				if _, err := loadConfig(v); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if err := initViper(viper.New(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}

func TestParseAttachmentSpec(t *testing.T) {
	tests := []struct {
		spec, path, mediaType string
	}{
		{"report.pdf", "report.pdf", "application/pdf"},
		{"data.bin:image/png", "data.bin", "image/png"},
		{"notes", "notes", defaultMediaType},
		{"dir/a:b.txt", "dir/a:b.txt", "text/plain"},
	}
	for _, tt := range tests {
		path, mediaType := parseAttachmentSpec(tt.spec)
		if path != tt.path || mediaType != tt.mediaType {
			t.Errorf("parseAttachmentSpec(%q) = %q, %q, want %q, %q", tt.spec, path, mediaType, tt.path, tt.mediaType)
		}
	}
}

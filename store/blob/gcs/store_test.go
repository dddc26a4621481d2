package gcs

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/rbaliyan/mailstore/store"
)

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background()); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestNewWithAPIKey(t *testing.T) {
	s, err := New(context.Background(),
		WithBucket("mail"),
		WithAPIKey("key"),
		WithEndpoint("http://127.0.0.1:4443/storage/v1/"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	if s.prefix != DefaultPrefix {
		t.Errorf("prefix = %q", s.prefix)
	}
}

func TestObjectName(t *testing.T) {
	s := &Store{prefix: "blobs"}
	id := store.BlobID("cd" + strings.Repeat("1", store.BlobIDLength-2))
	want := "blobs/cd/" + string(id)
	if got := s.objectName(id); got != want {
		t.Errorf("objectName = %q, want %q", got, want)
	}
}

func TestIsPreconditionFailed(t *testing.T) {
	err := fmt.Errorf("close: %w", &googleapi.Error{Code: http.StatusPreconditionFailed})
	if !isPreconditionFailed(err) {
		t.Error("412 not recognized")
	}
	if isPreconditionFailed(&googleapi.Error{Code: http.StatusForbidden}) {
		t.Error("403 recognized as precondition failure")
	}
}

func TestBuildClientOptions(t *testing.T) {
	opts, err := buildClientOptions(newOptions())
	if err != nil || len(opts) != 0 {
		t.Errorf("default = %d options, %v", len(opts), err)
	}

	opts, err = buildClientOptions(newOptions(WithEndpoint("http://localhost:4443"), WithAPIKey("k")))
	if err != nil || len(opts) != 2 {
		t.Errorf("endpoint+key = %d options, %v", len(opts), err)
	}

	o := newOptions(WithCredentialsFile("/nonexistent.json"), WithAPIKey("k"))
	if o.auth.file != "" || o.auth.apiKey != "k" {
		t.Errorf("last credential option should win: %+v", o.auth)
	}
}

package s3

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/rbaliyan/mailstore/store"
)

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background()); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestNewWithStaticCredentials(t *testing.T) {
	s, err := New(context.Background(),
		WithBucket("mail"),
		WithStaticCredentials("AKID", "SECRET"),
		WithEndpoint("http://127.0.0.1:9000"),
		WithPathStyle(true),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.bucket != "mail" || s.prefix != DefaultPrefix {
		t.Errorf("bucket=%q prefix=%q", s.bucket, s.prefix)
	}
}

func TestObjectKey(t *testing.T) {
	s := &Store{prefix: "blobs"}
	id := store.BlobID("ab" + strings.Repeat("0", store.BlobIDLength-2))
	want := "blobs/ab/" + string(id)
	if got := s.objectKey(id); got != want {
		t.Errorf("objectKey = %q, want %q", got, want)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(fmt.Errorf("wrapped: %w", &types.NoSuchKey{})) {
		t.Error("NoSuchKey not recognized")
	}
	if !isNotFound(&types.NotFound{}) {
		t.Error("NotFound not recognized")
	}
	if isNotFound(fmt.Errorf("access denied")) {
		t.Error("unrelated error recognized as not found")
	}
}

func TestAssumeRoleDefaults(t *testing.T) {
	o := newOptions(WithAssumeRole("arn:aws:iam::123456789012:role/mail", ""))
	if o.assume.session != DefaultSessionName {
		t.Errorf("session = %q", o.assume.session)
	}
	if o.keys.set() {
		t.Error("static keys reported set")
	}
}

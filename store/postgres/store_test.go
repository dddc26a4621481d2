package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/rbaliyan/mailstore/store/storetest"
)

// newTestStore connects to the database named by MAILSTORE_POSTGRES_DSN
// using fresh tables. The test is skipped when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("MAILSTORE_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MAILSTORE_POSTGRES_DSN not set")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	s := New(db,
		WithRecordTable("test_records_"+suffix),
		WithIndexTable("test_index_"+suffix),
		WithBlobTable("test_blobs_"+suffix),
	)
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		for _, table := range []string{s.opts.recordTable, s.opts.indexTable, s.opts.blobTable} {
			_, _ = db.Exec("DROP TABLE IF EXISTS " + table)
		}
		_ = s.Close(ctx)
		_ = db.Close()
	})
	return s
}

func TestRecords(t *testing.T) {
	storetest.RunRecords(t, newTestStore(t))
}

func TestAttachmentIndex(t *testing.T) {
	storetest.RunAttachmentIndex(t, newTestStore(t))
}

func TestBlobBackend(t *testing.T) {
	storetest.RunBlobBackend(t, newTestStore(t))
}

func TestOptions(t *testing.T) {
	o := newOptions(WithRecordTable(""), WithTimeout(-1))
	if o.recordTable != DefaultRecordTable {
		t.Errorf("recordTable = %q, want default", o.recordTable)
	}
	if o.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want default", o.timeout)
	}
}

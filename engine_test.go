package mailstore

import (
	"context"
	"errors"
	"testing"

	"github.com/rbaliyan/mailstore/store"
	"github.com/rbaliyan/mailstore/store/memory"
)

// Message from the ingestion fixtures: header is the first 16 bytes.
const (
	testContent   = "Subject: Test7 \n\nBody7\n.\n"
	testBodyStart = 16
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store) {
	t.Helper()
	sub := memory.New()
	eng, err := New(append([]Option{WithSubstrate(sub)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { eng.Close(context.Background()) })
	return eng, sub
}

func testLocator(uid uint32) store.MessageLocator {
	return store.MessageLocator{
		MailboxID: "mbx-1",
		MessageID: store.NewMessageID(),
		UID:       uid,
		ModSeq:    uint64(uid),
	}
}

func testInput(loc store.MessageLocator) MessageInput {
	return MessageInput{
		Locator:   loc,
		Content:   []byte(testContent),
		BodyStart: testBodyStart,
	}
}

func TestNew(t *testing.T) {
	t.Run("requires substrate", func(t *testing.T) {
		_, err := New()
		if !errors.Is(err, ErrSubstrateRequired) {
			t.Errorf("expected ErrSubstrateRequired, got %v", err)
		}
	})

	t.Run("creates engine with substrate", func(t *testing.T) {
		eng, err := New(WithSubstrate(memory.New()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if eng.Blobs() == nil {
			t.Error("expected blob store")
		}
		if eng.IsConnected() {
			t.Error("new engine reports connected")
		}
	})
}

func TestEngineLifecycle(t *testing.T) {
	ctx := context.Background()
	eng, err := New(WithSubstrate(memory.New()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := eng.Save(ctx, testInput(testLocator(1))); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Save before Connect: expected ErrNotConnected, got %v", err)
	}
	if _, err := eng.Retrieve(ctx, nil, FetchFull); !errors.Is(err, store.ErrNotConnected) {
		t.Errorf("Retrieve before Connect: expected ErrNotConnected, got %v", err)
	}

	if err := eng.Connect(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if !eng.IsConnected() {
		t.Error("expected connected")
	}
	if eng.Events() == nil {
		t.Error("expected events after Connect")
	}
	if err := eng.Connect(ctx); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("expected ErrAlreadyConnected, got %v", err)
	}

	if err := eng.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := eng.Close(ctx); err != nil {
		t.Errorf("second close should not error, got %v", err)
	}
	if err := eng.Delete(ctx, testLocator(1)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Delete after Close: expected ErrNotConnected, got %v", err)
	}
}

type recordingPlugin struct {
	name    string
	log     *[]string
	initErr error
	before  func(*MessageInput) error
}

func (p *recordingPlugin) Name() string { return p.name }

func (p *recordingPlugin) Init(context.Context) error {
	*p.log = append(*p.log, p.name+".init")
	return p.initErr
}

func (p *recordingPlugin) Close(context.Context) error {
	*p.log = append(*p.log, p.name+".close")
	return nil
}

func (p *recordingPlugin) BeforeSave(_ context.Context, in *MessageInput) error {
	*p.log = append(*p.log, p.name+".before")
	if p.before != nil {
		return p.before(in)
	}
	return nil
}

func (p *recordingPlugin) AfterSave(_ context.Context, rec *store.MessageRecord) error {
	*p.log = append(*p.log, p.name+".after")
	return nil
}

func (p *recordingPlugin) AfterDelete(_ context.Context, loc store.MessageLocator) error {
	*p.log = append(*p.log, p.name+".delete:"+loc.MessageID)
	return errors.New("ignored")
}

func TestPlugins(t *testing.T) {
	ctx := context.Background()

	t.Run("hooks run around save", func(t *testing.T) {
		var log []string
		eng, err := New(
			WithSubstrate(memory.New()),
			WithPlugins(&recordingPlugin{name: "a", log: &log}, &recordingPlugin{name: "b", log: &log}),
		)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := eng.Connect(ctx); err != nil {
			t.Fatalf("Connect: %v", err)
		}
		if _, err := eng.Save(ctx, testInput(testLocator(1))); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if err := eng.Close(ctx); err != nil {
			t.Fatalf("Close: %v", err)
		}

		want := []string{"a.init", "b.init", "a.before", "b.before", "a.after", "b.after", "b.close", "a.close"}
		if len(log) != len(want) {
			t.Fatalf("log = %v, want %v", log, want)
		}
		for i := range want {
			if log[i] != want[i] {
				t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
			}
		}
	})

	t.Run("before hook aborts save", func(t *testing.T) {
		var log []string
		reject := errors.New("rejected")
		eng, sub := newTestEngine(t, WithPlugin(&recordingPlugin{
			name:   "filter",
			log:    &log,
			before: func(*MessageInput) error { return reject },
		}))

		loc := testLocator(2)
		_, err := eng.Save(ctx, testInput(loc))
		var pe *PluginError
		if !errors.As(err, &pe) || !errors.Is(err, reject) {
			t.Fatalf("expected PluginError wrapping reject, got %v", err)
		}
		if sub.BlobWrites() != 0 {
			t.Errorf("blob writes = %d after rejected save", sub.BlobWrites())
		}
		if _, err := sub.GetRecord(ctx, loc); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("record written after rejected save: %v", err)
		}
	})

	t.Run("init failure closes initialized plugins", func(t *testing.T) {
		var log []string
		eng, err := New(
			WithSubstrate(memory.New()),
			WithPlugin(&recordingPlugin{name: "ok", log: &log}),
			WithPlugin(&recordingPlugin{name: "bad", log: &log, initErr: errors.New("boom")}),
		)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := eng.Connect(ctx); err == nil {
			t.Fatal("expected Connect to fail")
		}
		if eng.IsConnected() {
			t.Error("engine connected after failed plugin init")
		}
		want := []string{"ok.init", "bad.init", "ok.close"}
		if len(log) != len(want) {
			t.Fatalf("log = %v, want %v", log, want)
		}
	})

	t.Run("delete hook failure does not fail delete", func(t *testing.T) {
		var log []string
		eng, _ := newTestEngine(t, WithPlugin(&recordingPlugin{name: "audit", log: &log}))

		loc := testLocator(3)
		if _, err := eng.Save(ctx, testInput(loc)); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if err := eng.Delete(ctx, loc); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if got := log[len(log)-1]; got != "audit.delete:"+loc.MessageID {
			t.Errorf("last hook = %q", got)
		}
	})
}

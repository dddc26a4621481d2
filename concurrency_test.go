package mailstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rbaliyan/mailstore/store"
	"github.com/rbaliyan/mailstore/store/memory"
)

func TestConcurrentSaveAndRetrieve(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, WithMaxConcurrentSaves(4), WithMaxConcurrentReads(4))

	const n = 40
	locs := make([]store.MessageLocator, n)
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		locs[i] = testLocator(uint32(i + 1))
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := MessageInput{
				Locator: locs[i],
				Content: []byte(fmt.Sprintf("Subject: %d\r\n\r\nbody %d\r\n", i, i)),
				Attachments: []store.Attachment{
					{MediaType: "text/plain", Data: []byte("shared")},
					{MediaType: "text/plain", Data: []byte(fmt.Sprintf("own %d", i))},
				},
			}
			in.DetectBodyStart()
			if _, err := eng.Save(ctx, in); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Save: %v", err)
	}

	results, err := eng.Retrieve(ctx, locs, FetchFull)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != n {
		t.Fatalf("got %d results, want %d", len(results), n)
	}
	for i, r := range results {
		if r.Err != nil {
			t.Errorf("item %d: %v", i, r.Err)
			continue
		}
		want := fmt.Sprintf("Subject: %d\r\n\r\nbody %d\r\n", i, i)
		if string(r.Message.Content()) != want {
			t.Errorf("item %d content = %q, want %q", i, r.Message.Content(), want)
		}
	}

	entries, err := eng.CollectAttachments(ctx)
	if err != nil {
		t.Fatalf("CollectAttachments: %v", err)
	}
	if len(entries) != n {
		t.Errorf("index entries = %d, want %d", len(entries), n)
	}
}

func TestCloseWaitsForSaves(t *testing.T) {
	ctx := context.Background()
	eng, err := New(WithSubstrate(memory.New()), WithMaxConcurrentSaves(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Saves racing Close either complete or see ErrNotConnected.
			_, _ = eng.Save(ctx, testInput(testLocator(uint32(i+1))))
		}()
	}
	if err := eng.Close(ctx); err != nil {
		t.Errorf("Close: %v", err)
	}
	wg.Wait()
	if eng.IsConnected() {
		t.Error("engine connected after Close")
	}
}

package mailstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/rbaliyan/mailstore/content"
	"github.com/rbaliyan/mailstore/store"
)

// ErrNotFound is returned by Get for a locator with no record.
var ErrNotFound = fmt.Errorf("mailstore: %w", store.ErrNotFound)

// FetchType selects how much of a message Retrieve reads.
type FetchType int

const (
	// FetchMetadata reads the record only.
	FetchMetadata FetchType = iota
	// FetchHeaders reads the record and the header bytes.
	FetchHeaders
	// FetchBody reads the record and the body bytes.
	FetchBody
	// FetchFull reads the record and the whole message.
	FetchFull
)

func (f FetchType) String() string {
	switch f {
	case FetchMetadata:
		return "metadata"
	case FetchHeaders:
		return "headers"
	case FetchBody:
		return "body"
	case FetchFull:
		return "full"
	}
	return fmt.Sprintf("FetchType(%d)", int(f))
}

// Valid reports whether f is one of the defined fetch types.
func (f FetchType) Valid() bool {
	return f >= FetchMetadata && f <= FetchFull
}

// ParseFetchType parses the names returned by FetchType.String.
func ParseFetchType(s string) (FetchType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "metadata":
		return FetchMetadata, nil
	case "headers":
		return FetchHeaders, nil
	case "body":
		return FetchBody, nil
	case "full":
		return FetchFull, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFetchType, s)
}

// Message is a record plus the content read at its fetch depth.
type Message struct {
	Record *store.MessageRecord
	Fetch  FetchType
	region content.Region
}

// Locator returns the message locator.
func (m *Message) Locator() store.MessageLocator { return m.Record.MessageLocator }

// Size is the size of the whole original message, at every depth.
func (m *Message) Size() int64 { return m.Record.Size }

// BodyStartOctet is the whole-message offset of the first body byte.
func (m *Message) BodyStartOctet() int64 { return m.Record.BodyStartOctet }

// Content returns the bytes read at the fetch depth: nothing for
// metadata, the header, the body, or the whole message.
func (m *Message) Content() []byte { return m.region.Data }

// Region returns the content positioned at its whole-message offset. A
// body fetch starts at BodyStartOctet.
func (m *Message) Region() content.Region { return m.region }

// Result is the outcome for one locator of a batch Retrieve. Exactly one of
// Message and Err is set.
type Result struct {
	Locator store.MessageLocator
	Message *Message
	Err     error
}

// Retrieve reads the given locators at the given depth.
//
// Items are independent: a failure reading one locator is reported in its
// Result and does not affect the others. Locators with no record are
// omitted. Results keep the order of locators. The returned error is set
// only for an unknown fetch type or when ctx is done before any read was
// issued.
func (e *Engine) Retrieve(ctx context.Context, locators []store.MessageLocator, fetch FetchType) ([]Result, error) {
	if err := e.checkConnected(); err != nil {
		return nil, err
	}
	if !fetch.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFetchType, int(fetch))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, endSpan := e.otel.startSpan(ctx, "mailstore.retrieve",
		attribute.String("fetch", fetch.String()),
		attribute.Int("locators", len(locators)),
	)
	start := time.Now()

	slots := make([]*Result, len(locators))

	var g errgroup.Group
	g.SetLimit(e.opts.maxConcurrentReads)
	for i, loc := range locators {
		if err := ctx.Err(); err != nil {
			slots[i] = &Result{Locator: loc, Err: &ItemError{Locator: loc, Err: err}}
			continue
		}
		g.Go(func() error {
			slots[i] = e.retrieveOne(ctx, loc, fetch)
			return nil
		})
	}
	_ = g.Wait()

	results := make([]Result, 0, len(slots))
	failed := 0
	for _, r := range slots {
		if r == nil {
			continue
		}
		if r.Err != nil {
			failed++
		}
		results = append(results, *r)
	}

	e.otel.recordRetrieve(ctx, time.Since(start), fetch, len(results)-failed, failed)
	endSpan(nil)
	e.logger.Debug("retrieved messages",
		"fetch", fetch.String(),
		"requested", len(locators),
		"returned", len(results),
		"failed", failed,
	)
	return results, nil
}

// Get reads one locator. It returns ErrNotFound when no record exists.
func (e *Engine) Get(ctx context.Context, loc store.MessageLocator, fetch FetchType) (*Message, error) {
	results, err := e.Retrieve(ctx, []store.MessageLocator{loc}, fetch)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	if results[0].Err != nil {
		return nil, results[0].Err
	}
	return results[0].Message, nil
}

// retrieveOne returns nil when loc has no record.
func (e *Engine) retrieveOne(ctx context.Context, loc store.MessageLocator, fetch FetchType) *Result {
	fail := func(err error) *Result {
		return &Result{Locator: loc, Err: &ItemError{Locator: loc, Err: err}}
	}

	if err := loc.Validate(); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}

	rec, err := e.records.GetRecord(ctx, loc)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fail(fmt.Errorf("get record: %w", err))
	}

	region, err := e.load(ctx, rec, fetch)
	if err != nil {
		return fail(err)
	}
	return &Result{Locator: loc, Message: &Message{Record: rec, Fetch: fetch, region: region}}
}

// load reads the content of rec at the given depth.
func (e *Engine) load(ctx context.Context, rec *store.MessageRecord, fetch FetchType) (content.Region, error) {
	switch fetch {
	case FetchMetadata:
		return content.Region{}, nil

	case FetchHeaders:
		header, err := e.readPart(ctx, rec, "header", rec.HeaderBlobID, rec.HeaderLength())
		if err != nil {
			return content.Region{}, err
		}
		return content.Region{Start: 0, Data: header}, nil

	case FetchBody:
		body, err := e.readPart(ctx, rec, "body", rec.BodyBlobID, rec.BodyLength())
		if err != nil {
			return content.Region{}, err
		}
		return content.Region{Start: rec.BodyStartOctet, Data: body}, nil

	case FetchFull:
		var header, body []byte
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			header, err = e.readPart(gctx, rec, "header", rec.HeaderBlobID, rec.HeaderLength())
			return err
		})
		g.Go(func() error {
			var err error
			body, err = e.readPart(gctx, rec, "body", rec.BodyBlobID, rec.BodyLength())
			return err
		})
		if err := g.Wait(); err != nil {
			return content.Region{}, err
		}
		return content.Region{Start: 0, Data: content.Join(header, body)}, nil
	}
	return content.Region{}, fmt.Errorf("%w: %d", ErrUnknownFetchType, int(fetch))
}

// readPart reads one blob of rec and checks it has the length the record
// claims. A missing, corrupt or mis-sized blob is a consistency fault.
func (e *Engine) readPart(ctx context.Context, rec *store.MessageRecord, part string, id store.BlobID, want int64) ([]byte, error) {
	data, err := e.blobs.Retrieve(ctx, id)
	switch {
	case err == nil && int64(len(data)) == want:
		return data, nil
	case err == nil:
		err = fmt.Errorf("%w: %s blob %s has %d bytes, record expects %d",
			ErrConsistency, part, id.Short(), len(data), want)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrConsistency), errors.Is(err, store.ErrInvalidID):
		err = fmt.Errorf("%w: %s blob %s: %v", ErrConsistency, part, id.Short(), err)
	default:
		return nil, fmt.Errorf("read %s blob: %w", part, err)
	}

	e.otel.recordConsistencyFault(ctx)
	e.logger.Warn("record references unreadable blob",
		"locator", rec.MessageLocator.String(),
		"part", part,
		"blob", id.Short(),
		"error", err,
	)
	return nil, err
}

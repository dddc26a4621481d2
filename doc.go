// Package mailstore is a mailbox message storage engine.
//
// It persists raw email messages and their attachments on a distributed
// row store that offers no multi-row transactions, and reads them back at
// a chosen depth: metadata only, headers only, body only, or the full
// message.
//
// # Storage Model
//
// Each message is split at its body start offset into a header blob and a
// body blob. Blobs, including attachment payloads, are content-addressed
// (store/blob): their id is the BLAKE3 digest of their bytes, so identical
// content is stored once and writes are idempotent. A per-message record
// holds the locator, sizes, flags, structural properties and the blob ids.
// A secondary attachment index maps message ids to attachment ids.
//
// Save writes blobs first, the attachment index next and the record last,
// so a record is never visible before everything it references. Retrieve
// treats a record whose blob cannot be read as a consistency fault
// (ErrConsistency), distinct from a missing message.
//
// # Basic Usage
//
//	sub := memory.New()
//	eng, err := mailstore.New(mailstore.WithSubstrate(sub))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := eng.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	in := mailstore.MessageInput{
//	    Locator: store.MessageLocator{MailboxID: "inbox", MessageID: store.NewMessageID(), UID: 1},
//	    Content: raw,
//	}
//	in.DetectBodyStart()
//	rec, err := eng.Save(ctx, in)
//
//	results, err := eng.Retrieve(ctx, []store.MessageLocator{rec.MessageLocator}, mailstore.FetchHeaders)
//
// # Storage Backends
//
// Substrates (records, index and blobs):
//   - In-memory (store/memory) - for testing
//   - PostgreSQL (store/postgres) - accepts *sqlx.DB or *sql.DB
//   - MongoDB (store/mongo) - accepts *mongo.Client
//   - Redis (store/redis) - accepts redis.UniversalClient
//
// Blob payloads can be routed elsewhere with WithBlobBackend: S3
// (store/blob/s3), Google Cloud Storage (store/blob/gcs), optionally
// behind a local disk cache (store/blob/cached) and OpenTelemetry
// instrumentation (store/blob/otel).
//
// # Events
//
// MessageStored and MessageDeleted events are published through
// github.com/rbaliyan/event/v3. Pass WithRedisClient or WithEventTransport
// to deliver them; otherwise a noop transport drops them.
//
//	eng.Events().MessageStored.Subscribe(ctx, handler)
package mailstore

package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rbaliyan/mailstore/store"
)

// PutAttachmentIDs replaces the entry for messageID. An empty set deletes
// it. The value and its membership in the idx set change in one MULTI.
func (s *Store) PutAttachmentIDs(ctx context.Context, messageID string, ids []store.BlobID) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if messageID == "" {
		return store.ErrInvalidID
	}
	if len(ids) == 0 {
		return s.DeleteAttachmentIDs(ctx, messageID)
	}

	data, err := store.EncodeBlobIDs(ids)
	if err != nil {
		return fmt.Errorf("put attachment ids: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.indexKey(messageID), data, 0)
		pipe.ZAdd(ctx, s.indexSetKey(), goredis.Z{Score: 0, Member: messageID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("put attachment ids: %w", err)
	}
	return nil
}

// GetAttachmentIDs returns the ids recorded for messageID.
func (s *Store) GetAttachmentIDs(ctx context.Context, messageID string) ([]store.BlobID, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if messageID == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.indexKey(messageID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return []store.BlobID{}, nil
		}
		return nil, fmt.Errorf("get attachment ids: %w", err)
	}
	ids, err := store.DecodeBlobIDs(data)
	if err != nil {
		return nil, fmt.Errorf("get attachment ids: %w", err)
	}
	return ids, nil
}

// DeleteAttachmentIDs removes the entry for messageID.
func (s *Store) DeleteAttachmentIDs(ctx context.Context, messageID string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if messageID == "" {
		return store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.indexKey(messageID))
		pipe.ZRem(ctx, s.indexSetKey(), messageID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete attachment ids: %w", err)
	}
	return nil
}

// ScanAttachmentIDs pages over the idx sorted set in lexical order. The
// cursor is the last message id of the previous page.
func (s *Store) ScanAttachmentIDs(ctx context.Context, cursor string, limit int) ([]store.MessageIDAttachmentIDs, string, error) {
	if err := s.checkConnected(); err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		return nil, "", store.ErrInvalidArgument
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	lo := "-"
	if cursor != "" {
		lo = "(" + cursor
	}
	members, err := s.client.ZRangeByLex(ctx, s.indexSetKey(), &goredis.ZRangeBy{
		Min:   lo,
		Max:   "+",
		Count: int64(limit + 1),
	}).Result()
	if err != nil {
		return nil, "", fmt.Errorf("scan attachment ids: %w", err)
	}

	hasMore := len(members) > limit
	if hasMore {
		members = members[:limit]
	}
	if len(members) == 0 {
		return []store.MessageIDAttachmentIDs{}, "", nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = s.indexKey(m)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, "", fmt.Errorf("scan attachment ids: %w", err)
	}

	page := make([]store.MessageIDAttachmentIDs, 0, len(members))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // deleted between ZRANGEBYLEX and MGET
		}
		ids, err := store.DecodeBlobIDs([]byte(raw))
		if err != nil {
			return nil, "", fmt.Errorf("scan attachment ids: %w", err)
		}
		if len(ids) == 0 {
			continue
		}
		entry, err := store.NewMessageIDAttachmentIDs(members[i], ids)
		if err != nil {
			return nil, "", fmt.Errorf("scan attachment ids: %w", err)
		}
		page = append(page, entry)
	}

	var next string
	if hasMore {
		next = members[len(members)-1]
	}
	return page, next, nil
}

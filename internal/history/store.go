// Package history is the append-only, per-room chat log. It sits on any
// repository.ListStore and never lets a store failure reach the chat path:
// appends that fail are logged and dropped, pages that fail come back empty.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"groupchat/internal/metrics"
	"groupchat/internal/models"
	"groupchat/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPageSize = 20
	DefaultPrefix   = "chatHistory"
	DefaultTimeout  = 2 * time.Second
)

type Options struct {
	Prefix   string
	PageSize int
	Timeout  time.Duration
}

type Store struct {
	list     repository.ListStore
	prefix   string
	pageSize int
	timeout  time.Duration
	log      zerolog.Logger
	flight   singleflight.Group
}

func NewStore(list repository.ListStore, opts Options, logger zerolog.Logger) *Store {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Store{
		list:     list,
		prefix:   opts.Prefix,
		pageSize: opts.PageSize,
		timeout:  opts.Timeout,
		log:      logger,
	}
}

func (s *Store) PageSize() int { return s.pageSize }

func (s *Store) key(room string) string {
	return s.prefix + ":" + room
}

// Append pushes msg to the tail of its room's log.
func (s *Store) Append(ctx context.Context, msg models.ChatMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		metrics.HistoryStoreErrors.WithLabelValues("append").Inc()
		s.log.Warn().Err(err).Str("room", msg.Room).Msg("history append: marshal failed")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err = s.list.Push(ctx, s.key(msg.Room), data)
	metrics.HistoryStoreLatency.WithLabelValues("append").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HistoryStoreErrors.WithLabelValues("append").Inc()
		s.log.Warn().Err(err).Str("room", msg.Room).Str("message_id", msg.ID).Msg("history append failed, message not persisted")
	}
}

// Page returns up to PageSize messages, newest first, starting right after
// endCursor (or at the newest message when endCursor <= 0). A cursor at or
// past the oldest message yields an empty page with hasNext false.
// Concurrent requests for the same window share one store round trip.
func (s *Store) Page(ctx context.Context, room string, endCursor int) models.HistoryPage {
	if endCursor < 0 {
		endCursor = 0
	}

	v, _, _ := s.flight.Do(fmt.Sprintf("%s|%d", room, endCursor), func() (any, error) {
		// Shared by every waiter, so one caller's cancellation must not
		// fail the others.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.page(fctx, room, endCursor), nil
	})

	page := v.(models.HistoryPage)
	metrics.HistoryPagesServed.Inc()
	return page
}

func (s *Store) page(ctx context.Context, room string, endCursor int) models.HistoryPage {
	began := time.Now()
	defer func() {
		metrics.HistoryStoreLatency.WithLabelValues("page").Observe(time.Since(began).Seconds())
	}()

	key := s.key(room)

	total, err := s.list.Len(ctx, key)
	if err != nil {
		s.degraded(err, room)
		return models.EmptyPage(endCursor)
	}

	// Bound the cursor before any arithmetic on it.
	var start int64
	if endCursor > 0 {
		if int64(endCursor) >= total-1 {
			return models.EmptyPage(endCursor)
		}
		start = int64(endCursor) + 1
	}
	if start >= total {
		return models.EmptyPage(endCursor)
	}

	// Newest-first index i lives at list position total-1-i.
	end := start + int64(s.pageSize) - 1
	if end > total-1 {
		end = total - 1
	}
	lo := total - 1 - end
	hi := total - 1 - start

	raw, err := s.list.Range(ctx, key, lo, hi)
	if err != nil {
		s.degraded(err, room)
		return models.EmptyPage(endCursor)
	}

	msgs := make([]models.ChatMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var m models.ChatMessage
		if err := json.Unmarshal(raw[i], &m); err != nil {
			s.log.Warn().Err(err).Str("room", room).Msg("skipping undecodable history entry")
			continue
		}
		msgs = append(msgs, m)
	}

	return models.HistoryPage{
		History:   msgs,
		EndCursor: int(end),
		HasNext:   end < total-1,
	}
}

func (s *Store) degraded(err error, room string) {
	metrics.HistoryStoreErrors.WithLabelValues("page").Inc()
	s.log.Warn().Err(err).Str("room", room).Msg("history page failed, serving empty page")
}

package service

import (
	"context"
	"fmt"
	"time"

	"go-repair-billing/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// InvoiceNumberer hands out display numbers shaped PREFIX-YYYY-NNNNN. The
// number is not a uniqueness key.
type InvoiceNumberer interface {
	Next(tx repository.Tx, issued time.Time) (string, error)
}

func formatInvoiceNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%05d", prefix, year, seq)
}

func yearBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(1, 0, 0)
}

// CountingNumberer uses the count of this year's live invoices plus one.
// Concurrent creations may receive the same number.
type CountingNumberer struct {
	Prefix string
}

func (n CountingNumberer) Next(tx repository.Tx, issued time.Time) (string, error) {
	from, to := yearBounds(issued)
	count, err := tx.Invoices().CountCreatedBetween(from, to)
	if err != nil {
		return "", err
	}
	return formatInvoiceNumber(n.Prefix, issued.Year(), count+1), nil
}

// RedisInvoiceNumberer keeps one atomic counter per year in Redis, seeded
// from the database count the first time a year is seen. When Redis is
// unreachable it degrades to the counting scheme.
type RedisInvoiceNumberer struct {
	rdb      *redis.Client
	fallback CountingNumberer
	log      zerolog.Logger
}

func NewRedisInvoiceNumberer(rdb *redis.Client, prefix string, logger zerolog.Logger) *RedisInvoiceNumberer {
	return &RedisInvoiceNumberer{rdb: rdb, fallback: CountingNumberer{Prefix: prefix}, log: logger}
}

func (n *RedisInvoiceNumberer) Next(tx repository.Tx, issued time.Time) (string, error) {
	seq, err := n.increment(tx, issued)
	if err != nil {
		n.log.Warn().Err(err).Msg("redis invoice counter unavailable, falling back to count")
		return n.fallback.Next(tx, issued)
	}
	return formatInvoiceNumber(n.fallback.Prefix, issued.Year(), seq), nil
}

func (n *RedisInvoiceNumberer) increment(tx repository.Tx, issued time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(tx.Context(), 2*time.Second)
	defer cancel()

	key := fmt.Sprintf("billing:invoice_seq:%s:%d", n.fallback.Prefix, issued.Year())
	exists, err := n.rdb.Exists(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		from, to := yearBounds(issued)
		count, err := tx.Invoices().CountCreatedBetween(from, to)
		if err != nil {
			return 0, err
		}
		// SETNX so a concurrent seeder cannot reset a counter already in use
		if err := n.rdb.SetNX(ctx, key, count, 0).Err(); err != nil {
			return 0, err
		}
	}
	return n.rdb.Incr(ctx, key).Result()
}

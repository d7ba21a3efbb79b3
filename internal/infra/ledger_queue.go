package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"stk-relay/internal/payments/entities"
	"stk-relay/internal/payments/repository"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/redis/go-redis/v9"
)

const (
	LedgerRetryStream = "ledger_retry_stream"
	LedgerRetryGroup  = "ledger_retry_group"

	reclaimLockName = "ledger_retry_reclaimer"
)

// Tunables
const (
	defaultJobChanBuf = 1000
	readBlock         = 2 * time.Second
	readCount         = 100
	defaultMinIdle    = 30 * time.Second
	reclaimInterval   = 10 * time.Second
)

type Job struct {
	ID     string
	Values map[string]interface{}
}

// LedgerQueue is the operator channel for ledger entries the ledger refused.
// The relay publishes to a Redis stream; the worker replays the stream into
// the ledger and acknowledges an entry only once it is stored.
type LedgerQueue struct {
	redisClient *redis.Client
	lock        *redsync.Redsync
	ledger      repository.Ledger
	numWorkers  int
	minIdle     time.Duration
}

func NewLedgerQueue(redisClient *redis.Client, lock *redsync.Redsync, ledger repository.Ledger, numWorkers int) *LedgerQueue {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &LedgerQueue{
		redisClient: redisClient,
		lock:        lock,
		ledger:      ledger,
		numWorkers:  numWorkers,
		minIdle:     defaultMinIdle,
	}
}

// ReportLedgerFailure queues entry for replay.
func (q *LedgerQueue) ReportLedgerFailure(ctx context.Context, entry entities.LedgerEntry, cause error) error {
	values := entryToMap(entry)
	if cause != nil {
		values["cause"] = cause.Error()
	}

	id, err := q.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: LedgerRetryStream,
		Values: values,
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", LedgerRetryStream, err)
	}
	slog.Info("ledger entry queued", "streamId", id, "entryId", entry.ID, "correlationId", entry.CorrelationID)
	return nil
}

func (q *LedgerQueue) EnsureGroup(ctx context.Context) error {
	err := q.redisClient.XGroupCreateMkStream(ctx, LedgerRetryStream, LedgerRetryGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// Start runs the consumer, the workers and the reclaimer until ctx is done.
func (q *LedgerQueue) Start(ctx context.Context) error {
	if err := q.EnsureGroup(ctx); err != nil {
		return err
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	consumerName := fmt.Sprintf("ledger-replayer-%s-%d", hostname, os.Getpid())
	slog.Info("starting ledger retry queue", "workers", q.numWorkers, "consumer", consumerName)

	jobChan := make(chan Job, defaultJobChanBuf)

	var workers sync.WaitGroup
	for i := 1; i <= q.numWorkers; i++ {
		workers.Add(1)
		go q.startWorker(ctx, i, jobChan, &workers)
	}

	var producers sync.WaitGroup
	producers.Add(2)
	go func() {
		defer producers.Done()
		q.startConsumer(ctx, consumerName, jobChan)
	}()
	go func() {
		defer producers.Done()
		q.startReclaimer(ctx, consumerName, jobChan)
	}()

	producers.Wait()
	close(jobChan)
	workers.Wait()
	slog.Info("ledger retry queue stopped")
	return nil
}

func (q *LedgerQueue) startConsumer(ctx context.Context, consumerName string, jobChan chan<- Job) {
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := q.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    LedgerRetryGroup,
			Consumer: consumerName,
			Streams:  []string{LedgerRetryStream, ">"},
			Block:    readBlock,
			Count:    readCount,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				slog.Error("xreadgroup failed", "error", err)
				sleep(ctx, time.Second)
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				select {
				case jobChan <- Job{ID: msg.ID, Values: msg.Values}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (q *LedgerQueue) startWorker(ctx context.Context, id int, jobChan <-chan Job, wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range jobChan {
		q.process(ctx, id, job)
	}
}

func (q *LedgerQueue) process(ctx context.Context, workerID int, job Job) {
	entry, err := mapToEntry(job.Values)
	if err != nil {
		// unreadable message; acking it keeps it from being reclaimed forever
		slog.Error("dropping unreadable ledger retry message", "worker", workerID, "streamId", job.ID, "error", err)
		q.ack(ctx, job.ID)
		return
	}

	if err := q.ledger.Append(ctx, &entry); err != nil {
		slog.Warn("ledger replay failed, leaving pending", "worker", workerID, "streamId", job.ID, "entryId", entry.ID, "error", err)
		return
	}

	q.ack(ctx, job.ID)
	slog.Info("ledger entry replayed", "worker", workerID, "entryId", entry.ID, "correlationId", entry.CorrelationID)
}

func (q *LedgerQueue) ack(ctx context.Context, streamID string) {
	if err := q.redisClient.XAck(ctx, LedgerRetryStream, LedgerRetryGroup, streamID).Err(); err != nil {
		slog.Error("xack failed", "streamId", streamID, "error", err)
	}
}

// startReclaimer hands messages that stayed unacknowledged for minIdle back to
// the workers. Only the instance holding the redsync lock reclaims.
func (q *LedgerQueue) startReclaimer(ctx context.Context, consumerName string, jobChan chan<- Job) {
	ticker := time.NewTicker(reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.reclaimOnce(ctx, consumerName, jobChan)
		}
	}
}

func (q *LedgerQueue) reclaimOnce(ctx context.Context, consumerName string, jobChan chan<- Job) {
	mutex := q.lock.NewMutex(reclaimLockName, redsync.WithExpiry(reclaimInterval), redsync.WithTries(1))
	if err := mutex.LockContext(ctx); err != nil {
		return
	}
	defer func() {
		if _, err := mutex.UnlockContext(context.Background()); err != nil {
			slog.Debug("reclaimer unlock failed", "error", err)
		}
	}()

	pending, err := q.redisClient.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: LedgerRetryStream,
		Group:  LedgerRetryGroup,
		Start:  "-",
		End:    "+",
		Count:  readCount,
	}).Result()
	if err != nil {
		slog.Error("xpending failed", "error", err)
		return
	}

	var ids []string
	for _, p := range pending {
		if p.Idle >= q.minIdle {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	msgs, err := q.redisClient.XClaim(ctx, &redis.XClaimArgs{
		Stream:   LedgerRetryStream,
		Group:    LedgerRetryGroup,
		Consumer: consumerName,
		MinIdle:  q.minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		slog.Error("xclaim failed", "error", err)
		return
	}

	for _, msg := range msgs {
		slog.Info("reclaiming ledger retry message", "streamId", msg.ID)
		select {
		case jobChan <- Job{ID: msg.ID, Values: msg.Values}:
		case <-ctx.Done():
			return
		}
	}
}

// Pending reports how many queued entries are not yet stored: the ones handed
// to a worker but unacknowledged plus the ones no worker has read.
func (q *LedgerQueue) Pending(ctx context.Context) (int64, error) {
	groups, err := q.redisClient.XInfoGroups(ctx, LedgerRetryStream).Result()
	if err != nil {
		return 0, err
	}
	for _, g := range groups {
		if g.Name == LedgerRetryGroup {
			lag := g.Lag
			if lag < 0 {
				lag = 0
			}
			return g.Pending + lag, nil
		}
	}
	return 0, nil
}

func entryToMap(e entities.LedgerEntry) map[string]interface{} {
	return map[string]interface{}{
		"id":                 e.ID,
		"phoneNumber":        e.PhoneNumber,
		"amount":             e.Amount,
		"correlationId":      e.CorrelationID,
		"merchantRequestId":  e.MerchantRequestID,
		"mpesaReceiptNumber": e.MpesaReceiptNumber,
		"resultCode":         e.ResultCode,
		"resultDesc":         e.ResultDesc,
		"status":             string(e.Status),
		"recordedAt":         e.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
}

func mapToEntry(data map[string]interface{}) (entities.LedgerEntry, error) {
	var e entities.LedgerEntry

	str := func(key string) string {
		if v, ok := data[key]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
		return ""
	}

	e.ID = str("id")
	e.CorrelationID = str("correlationId")
	if e.ID == "" || e.CorrelationID == "" {
		return e, fmt.Errorf("message missing id or correlationId")
	}

	e.PhoneNumber = str("phoneNumber")
	e.MerchantRequestID = str("merchantRequestId")
	e.MpesaReceiptNumber = str("mpesaReceiptNumber")
	e.ResultDesc = str("resultDesc")
	e.Status = entities.Status(str("status"))

	var err error
	if s := str("amount"); s != "" {
		if e.Amount, err = strconv.ParseInt(s, 10, 64); err != nil {
			return e, fmt.Errorf("amount: %w", err)
		}
	}
	if e.ResultCode, err = strconv.ParseInt(str("resultCode"), 10, 64); err != nil {
		return e, fmt.Errorf("resultCode: %w", err)
	}
	if e.RecordedAt, err = time.Parse(time.RFC3339Nano, str("recordedAt")); err != nil {
		return e, fmt.Errorf("recordedAt: %w", err)
	}
	if !e.Status.IsTerminal() {
		e.Status = entities.StatusFromResultCode(e.ResultCode)
	}

	return e, nil
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

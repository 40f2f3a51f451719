package worker

// Receipt jobs that will not be retried land in dlq:{queue} for an operator
// to inspect and re-render by hand.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// DeadLetter is one abandoned job. ReceiptID is lifted out of the payload
// when present so entries can be matched to receipts without decoding it.
type DeadLetter struct {
	Queue     string          `json:"queue"`
	JobType   string          `json:"job_type"`
	ReceiptID string          `json:"receipt_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Reason    string          `json:"reason"`
	Attempts  int             `json:"attempts"`
	FailedAt  time.Time       `json:"failed_at"`
}

// SendToDLQ records an abandoned job. Without a redis client the entry is
// only logged; receipts still carry status failed and their last error.
func SendToDLQ(ctx context.Context, rdb *redis.Client, queue string, jobType string, payload json.RawMessage, reason string, attempts int) {
	entry := DeadLetter{
		Queue:     queue,
		JobType:   jobType,
		ReceiptID: receiptIDOf(payload),
		Payload:   payload,
		Reason:    reason,
		Attempts:  attempts,
		FailedAt:  time.Now().UTC(),
	}
	ev := log.Warn().
		Str("receipt_id", entry.ReceiptID).
		Str("job_type", jobType).
		Str("reason", reason).
		Int("attempts", attempts)

	if rdb == nil {
		ev.Msg("dlq: receipt job abandoned (no redis, not stored)")
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("receipt_id", entry.ReceiptID).Msg("dlq: marshal dead letter")
		return
	}
	if err := rdb.LPush(ctx, DLQPrefix+queue, data).Err(); err != nil {
		log.Error().Err(err).Str("receipt_id", entry.ReceiptID).Msg("dlq: push dead letter")
		return
	}
	ev.Msg("dlq: receipt job moved to dead letter queue")
}

// DLQLength returns the number of dead letters for queue; /health reports
// it for the receipt queue.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}

func receiptIDOf(payload json.RawMessage) string {
	var p ReceiptJobPayload
	if json.Unmarshal(payload, &p) != nil {
		return ""
	}
	return p.ReceiptID
}

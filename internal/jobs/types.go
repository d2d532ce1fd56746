package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TaskCacheSweep = "cache:sweep"
	TaskWarmStocks = "stocks:warm"
)

type CacheSweepPayload struct {
	JobID      string `json:"job_id"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type WarmStocksPayload struct {
	JobID   string   `json:"job_id"`
	Symbols []string `json:"symbols"`
	Period  string   `json:"period"`
}

// NewCacheSweepTask builds the periodic sweep task. ttlSeconds bounds
// which entries are reclaimed; zero means the handler's default.
func NewCacheSweepTask(ttlSeconds int) (*asynq.Task, error) {
	payload, err := json.Marshal(CacheSweepPayload{JobID: uuid.NewString(), TTLSeconds: ttlSeconds})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheSweep, payload), nil
}

// NewWarmStocksTask builds a prefetch task for the watchlist.
func NewWarmStocksTask(symbols []string, period string) (*asynq.Task, error) {
	payload, err := json.Marshal(WarmStocksPayload{JobID: uuid.NewString(), Symbols: symbols, Period: period})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWarmStocks, payload), nil
}

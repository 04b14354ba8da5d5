package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"cargamasiva-backend-go/internal/bulkimport"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrReportNotFound = ErrNotFound("Reporte no encontrado o expirado")

// ReportStore keeps batch results for later download. Stored results never
// carry temporary passwords.
type ReportStore interface {
	Save(ctx context.Context, result *bulkimport.BatchResult) (string, error)
	Load(ctx context.Context, id string) (*bulkimport.BatchResult, error)
}

// NewReportStore returns a Redis backed store when redisURL is set and an
// in-process one otherwise.
func NewReportStore(redisURL string, ttl time.Duration) (ReportStore, error) {
	if redisURL == "" {
		return NewMemoryReportStore(ttl), nil
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, WrapError(err, "REDIS_URL")
	}
	return &RedisReportStore{Client: redis.NewClient(opt), TTL: ttl}, nil
}

func sanitized(result *bulkimport.BatchResult) bulkimport.BatchResult {
	out := *result
	out.GeneratedCredentials = nil
	return out
}

type RedisReportStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func reportKey(id string) string {
	return "cargamasiva:reporte:" + id
}

func (s *RedisReportStore) Save(ctx context.Context, result *bulkimport.BatchResult) (string, error) {
	id := uuid.NewString()
	stored := sanitized(result)
	stored.ReportID = id
	raw, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}
	if err := s.Client.Set(ctx, reportKey(id), raw, s.TTL).Err(); err != nil {
		return "", WrapError(err, "guardar reporte")
	}
	return id, nil
}

func (s *RedisReportStore) Load(ctx context.Context, id string) (*bulkimport.BatchResult, error) {
	raw, err := s.Client.Get(ctx, reportKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, WrapError(err, "leer reporte")
	}
	var out bulkimport.BatchResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type memoryReport struct {
	result  bulkimport.BatchResult
	expires time.Time
}

type MemoryReportStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]memoryReport
	now   func() time.Time
}

func NewMemoryReportStore(ttl time.Duration) *MemoryReportStore {
	return &MemoryReportStore{ttl: ttl, items: map[string]memoryReport{}, now: time.Now}
}

func (s *MemoryReportStore) Save(_ context.Context, result *bulkimport.BatchResult) (string, error) {
	id := uuid.NewString()
	stored := sanitized(result)
	stored.ReportID = id
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, item := range s.items {
		if !now.Before(item.expires) {
			delete(s.items, key)
		}
	}
	s.items[id] = memoryReport{result: stored, expires: now.Add(s.ttl)}
	return id, nil
}

func (s *MemoryReportStore) Load(_ context.Context, id string) (*bulkimport.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok || !s.now().Before(item.expires) {
		delete(s.items, id)
		return nil, ErrReportNotFound
	}
	out := item.result
	return &out, nil
}

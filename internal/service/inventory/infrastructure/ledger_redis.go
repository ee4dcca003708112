package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"marketbot/internal/service/inventory/domain"
)

const DefaultLedgerKey = "inventory:ledger:dataset"

// RedisLedgerStore 把整个数据集存为一个 JSON 字符串。
// 单个 SET 是原子的，读者不会看到写了一半的数据集。
type RedisLedgerStore struct {
	rdb redis.UniversalClient
	key string
}

func NewRedisLedgerStore(rdb redis.UniversalClient, key string) *RedisLedgerStore {
	if key == "" {
		key = DefaultLedgerKey
	}
	return &RedisLedgerStore{rdb: rdb, key: key}
}

func (s *RedisLedgerStore) Load(ctx context.Context) (domain.Dataset, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Dataset{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "ledger: get %s", s.key)
	}
	var ds domain.Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, errors.Wrapf(err, "ledger: decode %s", s.key)
	}
	return domain.NormalizeDataset(ds), nil
}

func (s *RedisLedgerStore) Save(ctx context.Context, ds domain.Dataset) error {
	raw, err := json.Marshal(ds)
	if err != nil {
		return errors.Wrap(err, "ledger: encode")
	}
	if err := s.rdb.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return errors.Wrapf(err, "ledger: set %s", s.key)
	}
	return nil
}

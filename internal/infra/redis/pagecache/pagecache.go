package infra_catalog_cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis"
	"github.com/humanbelnik/kinomatch/internal/model"
)

const scanBatch = 200

// Driver stores catalog pages as JSON under a key prefix with a TTL.
type Driver struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func New(
	client *redis.Client,
	key string,
	ttl time.Duration,
) *Driver {
	return &Driver{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

func (d *Driver) Set(ctx context.Context, key string, page model.CatalogPage) error {
	value, err := json.Marshal(page)
	if err != nil {
		return err
	}

	return d.client.WithContext(ctx).Set(d.getFullKey(key), value, d.ttl).Err()
}

func (d *Driver) Get(ctx context.Context, key string) (model.CatalogPage, bool, error) {
	val, err := d.client.WithContext(ctx).Get(d.getFullKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return model.CatalogPage{}, false, nil
		}
		return model.CatalogPage{}, false, err
	}

	var page model.CatalogPage
	if err := json.Unmarshal(val, &page); err != nil {
		return model.CatalogPage{}, false, err
	}
	return page, true, nil
}

// Clear deletes every page under the prefix.
func (d *Driver) Clear(ctx context.Context) error {
	client := d.client.WithContext(ctx)

	var cursor uint64
	for {
		keys, next, err := client.Scan(cursor, d.getFullKey("*"), scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := client.Del(keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (d *Driver) getFullKey(key string) string {
	if d.key != "" {
		return d.key + ":" + key
	}
	return key
}

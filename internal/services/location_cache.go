package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"delivery-backend/internal/models"

	"github.com/go-redis/redis/v8"
)

// LocationCacheService зеркалирует последние позиции водителей в Redis,
// чтобы внешние сервисы отчетности могли их читать. Источником истины
// остается реестр подключений шлюза; зеркало обновляется best-effort.
type LocationCacheService struct {
	redisClient *redis.Client
	ttl         time.Duration
	enabled     bool
}

// NewLocationCacheService создает сервис зеркалирования позиций.
// При CACHE_ENABLED != "true" или отсутствии клиента Redis все
// операции становятся no-op.
func NewLocationCacheService(client *redis.Client) *LocationCacheService {
	cacheEnabled := os.Getenv("CACHE_ENABLED") == "true"

	if !cacheEnabled || client == nil {
		return &LocationCacheService{enabled: false}
	}

	// TTL позиции в секундах
	ttl := 300
	if val := os.Getenv("LOCATION_CACHE_TTL"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			ttl = parsed
		}
	}

	return &LocationCacheService{
		redisClient: client,
		ttl:         time.Duration(ttl) * time.Second,
		enabled:     true,
	}
}

func (c *LocationCacheService) key(driverID uint) string {
	return fmt.Sprintf("driver:location:%d", driverID)
}

// StorePosition сохраняет позицию водителя в Redis
func (c *LocationCacheService) StorePosition(ctx context.Context, pos models.DriverPosition) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("ошибка сериализации позиции: %w", err)
	}

	if err := c.redisClient.Set(ctx, c.key(pos.DriverID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи позиции в Redis: %w", err)
	}
	return nil
}

// GetPosition читает позицию водителя из Redis.
// Второй результат - признак наличия ключа.
func (c *LocationCacheService) GetPosition(ctx context.Context, driverID uint) (*models.DriverPosition, bool, error) {
	if !c.enabled {
		return nil, false, nil
	}

	val, err := c.redisClient.Get(ctx, c.key(driverID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения позиции из Redis: %w", err)
	}

	var pos models.DriverPosition
	if err := json.Unmarshal([]byte(val), &pos); err != nil {
		return nil, false, fmt.Errorf("ошибка десериализации позиции: %w", err)
	}
	return &pos, true, nil
}

// DropPosition удаляет позицию водителя после отключения
func (c *LocationCacheService) DropPosition(ctx context.Context, driverID uint) error {
	if !c.enabled {
		return nil
	}
	if err := c.redisClient.Del(ctx, c.key(driverID)).Err(); err != nil {
		return fmt.Errorf("ошибка удаления позиции из Redis: %w", err)
	}
	return nil
}

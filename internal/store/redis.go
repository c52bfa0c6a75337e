package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet-monitor/compliance/internal/config"
	"fleet-monitor/compliance/internal/domain"
	"fleet-monitor/compliance/internal/geofence"
)

const (
	liveStateTTL     = 30 * time.Second
	TelemetryPattern = "fleet:*:telemetry"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Client() *redis.Client {
	return r.client
}

// LivePosition is what the live feed publishes per accepted sample.
type LivePosition struct {
	VehicleID  string  `json:"vehicle_id"`
	FleetID    string  `json:"fleet_id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	SpeedKmh   float64 `json:"speed_kmh"`
	Ignition   bool    `json:"ignition"`
	Timestamp  int64   `json:"timestamp"`
	ReceivedAt int64   `json:"received_at"`
}

// PipelineStateUpdate refreshes the vehicle's live hash, its position in the
// fleet GEO set, and publishes it on the fleet telemetry channel, in one
// round trip.
func (r *RedisStore) PipelineStateUpdate(ctx context.Context, s domain.PositionSample) error {
	live := LivePosition{
		VehicleID:  s.VehicleID,
		FleetID:    s.FleetID,
		Lat:        s.Point.Lat,
		Lng:        s.Point.Lng,
		SpeedKmh:   s.SpeedKmh,
		Ignition:   s.Ignition,
		Timestamp:  s.Timestamp.Unix(),
		ReceivedAt: s.ReceivedAt.Unix(),
	}
	stateData := map[string]interface{}{
		"vehicle_id":  live.VehicleID,
		"fleet_id":    live.FleetID,
		"lat":         live.Lat,
		"lng":         live.Lng,
		"speed_kmh":   live.SpeedKmh,
		"ignition":    live.Ignition,
		"timestamp":   live.Timestamp,
		"received_at": live.ReceivedAt,
	}

	pubPayload, err := json.Marshal(live)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	vehicleStateKey := fmt.Sprintf("vehicle:%s:state", s.VehicleID)
	geoKey := fmt.Sprintf("fleet:%s:geo", s.FleetID)
	pubChannel := fmt.Sprintf("fleet:%s:telemetry", s.FleetID)

	pipe := r.client.Pipeline()

	pipe.HSet(ctx, vehicleStateKey, stateData)
	pipe.Expire(ctx, vehicleStateKey, liveStateTTL)
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      s.VehicleID,
		Longitude: s.Point.Lng,
		Latitude:  s.Point.Lat,
	})
	pipe.Publish(ctx, pubChannel, pubPayload)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}

	return nil
}

// SubscribeTelemetry listens on every fleet's telemetry channel.
func (r *RedisStore) SubscribeTelemetry(ctx context.Context) *redis.PubSub {
	return r.client.PSubscribe(ctx, TelemetryPattern)
}

// GetAPIKey resolves a device key to its fleet id, "" when unknown.
func (r *RedisStore) GetAPIKey(ctx context.Context, apiKey string) (string, error) {
	key := fmt.Sprintf("vehicle:auth:%s", apiKey)
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get api key failed: %w", err)
	}
	return val, nil
}

// swapStateScript replaces one field of the vehicle's geofence state hash and
// returns the previous value, OUTSIDE when absent.
var swapStateScript = redis.NewScript(`
local prev = redis.call('HGET', KEYS[1], ARGV[1])
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
if not prev then
	return 'OUTSIDE'
end
return prev
`)

// GeofenceStates keeps tracker state in Redis so every instance sees the
// same transitions. Idle vehicles expire after ttl.
type GeofenceStates struct {
	client redis.Scripter
	ttl    time.Duration
}

var _ geofence.StateStore = (*GeofenceStates)(nil)

func (r *RedisStore) GeofenceStates(ttl time.Duration) *GeofenceStates {
	return &GeofenceStates{client: r.client, ttl: ttl}
}

func (g *GeofenceStates) Swap(ctx context.Context, vehicleID, geofenceID string, next geofence.State) (geofence.State, error) {
	key := fmt.Sprintf("vehicle:%s:geofence_state", vehicleID)
	prev, err := swapStateScript.Run(ctx, g.client, []string{key}, geofenceID, string(next), g.ttl.Milliseconds()).Text()
	if err != nil {
		return geofence.Outside, fmt.Errorf("geofence state swap: %w", err)
	}
	return geofence.State(prev), nil
}

// Limiter accepts one sample per key per interval using SET NX PX, so the
// spacing holds across instances. It relies on the Redis clock, the now
// argument is ignored.
type Limiter struct {
	client   *redis.Client
	interval time.Duration
}

func (r *RedisStore) Limiter(interval time.Duration) *Limiter {
	return &Limiter{client: r.client, interval: interval}
}

func (l *Limiter) Allow(ctx context.Context, key string, _ time.Time) (bool, error) {
	ok, err := l.client.SetNX(ctx, "ratelimit:"+key, 1, l.interval).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return ok, nil
}

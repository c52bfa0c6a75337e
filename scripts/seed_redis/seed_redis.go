package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file — using system environment variables")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisGetEnv("REDIS_ADDR", "localhost:6379"),
		Password: redisGetEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	defer client.Close()

	ctx := context.Background()

	fmt.Println("Connecting to Redis...")
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Redis is running:\n  docker-compose up -d redis", err)
	}
	fmt.Println("✓ Connected")

	step1_api_keys(ctx, client)
	step2_reset_tracker(ctx, client)
	step3_verify(ctx, client)

	fmt.Println("\n✅ Redis seeded successfully")
	fmt.Println("   Run next: go run ./cmd/compliance serve")
}

func step1_api_keys(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 1: Seeding device API keys ─────────────")

	// vehicle:auth:{api_key} → fleet_id, read by the authenticator after its
	// static list and local cache. No TTL.
	apiKeys := map[string]string{
		"vehicle:auth:fleet_delhi_jaipur_key": "fleet_delhi_jaipur",
		"vehicle:auth:fleet_mumbai_pune_key":  "fleet_mumbai_pune",
		"vehicle:auth:fleet_bangalore_key":    "fleet_bangalore",
		"vehicle:auth:test_key":               "test_fleet",
	}

	for key, fleetID := range apiKeys {
		err := client.Set(ctx, key, fleetID, 0).Err()
		if err != nil {
			log.Fatalf("Failed to set key %s: %v", key, err)
		}
		fmt.Printf("  ✓ %-45s → %s\n", key, fleetID)
	}
}

// step2_reset_tracker drops leftover geofence state and rate limit slots so a
// fresh run sees every vehicle as outside every geofence.
func step2_reset_tracker(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 2: Resetting tracker state ─────────────")

	for _, pattern := range []string{"vehicle:*:geofence_state", "ratelimit:*"} {
		var removed int
		iter := client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := client.Del(ctx, iter.Val()).Err(); err != nil {
				log.Fatalf("Failed to delete %s: %v", iter.Val(), err)
			}
			removed++
		}
		if err := iter.Err(); err != nil {
			log.Fatalf("Scan %s failed: %v", pattern, err)
		}
		fmt.Printf("  ✓ %-45s removed %d\n", pattern, removed)
	}
}

func step3_verify(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 3: Verification ────────────────────────")

	keys, err := client.Keys(ctx, "vehicle:auth:*").Result()
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}
	fmt.Printf("  ✓ %d API keys found in Redis\n", len(keys))

	val, err := client.Get(ctx, "vehicle:auth:test_key").Result()
	if err != nil {
		log.Fatalf("Spot check failed: %v", err)
	}
	fmt.Printf("  ✓ spot check: vehicle:auth:test_key → %s\n", val)
}

func redisGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

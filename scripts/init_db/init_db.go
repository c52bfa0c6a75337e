package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "fleet_user"),
		dbGetEnv("DB_PASSWORD", "fleet_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "fleet_monitor"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to TimescaleDB...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure TimescaleDB is running:\n  docker-compose up -d timescaledb", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	step1_extensions(ctx, conn)
	step2_vehicles(ctx, conn)
	step3_geofences(ctx, conn)
	step4_gps_logs(ctx, conn)
	step5_fuel(ctx, conn)
	step6_risk(ctx, conn)
	step7_indexes(ctx, conn)
	step8_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run ./scripts/seed_redis")
}

// ─────────────────────────────────────────────────────────────
// Step 1: Extensions
// ─────────────────────────────────────────────────────────────
func step1_extensions(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: Extensions ──────────────────────────")

	execOrFatal(ctx, conn,
		"CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;",
		"timescaledb extension",
	)

	// geofence centers are GEOGRAPHY points
	execOrFatal(ctx, conn,
		"CREATE EXTENSION IF NOT EXISTS postgis;",
		"postgis extension",
	)
}

// ─────────────────────────────────────────────────────────────
// Step 2: vehicles
// ─────────────────────────────────────────────────────────────
func step2_vehicles(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: vehicles table ──────────────────────")

	// Vehicle CRUD lives elsewhere; the engine reads company, activity and
	// the mileage baseline.
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS vehicles (
			vehicle_id        TEXT             PRIMARY KEY,
			company_id        TEXT             NOT NULL,
			registration      TEXT,
			expected_mileage  DOUBLE PRECISION CHECK (expected_mileage IS NULL OR expected_mileage > 0),
			is_active         BOOLEAN          NOT NULL DEFAULT true,
			created_at        TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);
	`, "vehicles table created")
}

// ─────────────────────────────────────────────────────────────
// Step 3: geofences, assignments, arrival logs and penalties
// ─────────────────────────────────────────────────────────────
func step3_geofences(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: geofence tables ─────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS geofences (
			geofence_id            TEXT                    PRIMARY KEY,
			company_id             TEXT                    NOT NULL DEFAULT '',
			location_name          TEXT                    NOT NULL,
			center                 GEOGRAPHY(POINT, 4326)  NOT NULL,
			radius_meters          DOUBLE PRECISION        NOT NULL CHECK (radius_meters > 0),
			is_active              BOOLEAN                 NOT NULL DEFAULT true,
			expected_time_minutes  INTEGER,
			created_at             TIMESTAMPTZ             NOT NULL DEFAULT NOW()
		);
	`, "geofences table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS geofence_assignments (
			assignment_id        BIGSERIAL    PRIMARY KEY,
			geofence_id          TEXT         NOT NULL REFERENCES geofences (geofence_id),
			vehicle_id           TEXT         NOT NULL,
			expected_entry_time  TIME         NOT NULL,
			grace_minutes        INTEGER      NOT NULL DEFAULT 0 CHECK (grace_minutes >= 0),

			-- optional close of the arrival window for the MISSED sweep
			window_end           TIME,

			is_active            BOOLEAN      NOT NULL DEFAULT true,
			created_at           TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
	`, "geofence_assignments table created")

	// One row per vehicle, geofence and local calendar day. status NULL is a
	// bare arrival with no usable schedule.
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS geofence_logs (
			geofence_log_id  UUID         PRIMARY KEY,
			vehicle_id       TEXT         NOT NULL,
			geofence_id      TEXT         NOT NULL,
			arrival_time     TIMESTAMPTZ,
			arrival_day      DATE         NOT NULL,
			scheduled_time   TIMESTAMPTZ,
			delay_minutes    INTEGER      CHECK (delay_minutes IS NULL OR delay_minutes >= 0),
			status           TEXT,
			created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),

			CONSTRAINT uq_geofence_logs_day UNIQUE (vehicle_id, geofence_id, arrival_day),
			CONSTRAINT chk_geofence_log_status CHECK (
				status IS NULL OR status IN ('ON_TIME', 'LATE', 'MISSED')
			)
		);
	`, "geofence_logs table created")

	// A late log raises at most one penalty; logs are never deleted.
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS penalties (
			penalty_id       UUID         PRIMARY KEY,
			vehicle_id       TEXT         NOT NULL,
			geofence_id      TEXT         NOT NULL,
			geofence_log_id  UUID         NOT NULL UNIQUE REFERENCES geofence_logs (geofence_log_id),
			penalty_date     DATE         NOT NULL,
			penalty_amount   INTEGER      NOT NULL CHECK (penalty_amount > 0),
			reason           TEXT         NOT NULL,
			status           TEXT         NOT NULL DEFAULT 'PENDING',
			created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),

			CONSTRAINT chk_penalty_status CHECK (status IN ('PENDING', 'PAID', 'WAIVED'))
		);
	`, "penalties table created")
}

// ─────────────────────────────────────────────────────────────
// Step 4: gps_logs hypertable
// ─────────────────────────────────────────────────────────────
func step4_gps_logs(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: gps_logs table ──────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS gps_logs (
			-- device clock; the hypertable partitions on it
			recorded_at  TIMESTAMPTZ       NOT NULL,
			received_at  TIMESTAMPTZ       NOT NULL DEFAULT NOW(),

			vehicle_id   TEXT              NOT NULL,
			fleet_id     TEXT              NOT NULL DEFAULT '',

			latitude     DOUBLE PRECISION  NOT NULL,
			longitude    DOUBLE PRECISION  NOT NULL,
			speed        DOUBLE PRECISION  NOT NULL DEFAULT 0,
			ignition     BOOLEAN           NOT NULL DEFAULT true
		);
	`, "gps_logs table created")

	execOrFatal(ctx, conn, `
		SELECT create_hypertable(
			'gps_logs',
			'recorded_at',
			if_not_exists => TRUE
		);
	`, "gps_logs converted to hypertable")
}

// ─────────────────────────────────────────────────────────────
// Step 5: fuel entries and analysis
// ─────────────────────────────────────────────────────────────
func step5_fuel(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: fuel tables ─────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS fuel_entries (
			fuel_entry_id     UUID              PRIMARY KEY,
			vehicle_id        TEXT              NOT NULL,
			fuel_date         DATE              NOT NULL,
			fuel_quantity     DOUBLE PRECISION  NOT NULL CHECK (fuel_quantity >= 0),
			odometer_reading  DOUBLE PRECISION  CHECK (odometer_reading IS NULL OR odometer_reading >= 0),
			fuel_station      TEXT,
			entered_by        TEXT,
			created_at        TIMESTAMPTZ       NOT NULL DEFAULT NOW()
		);
	`, "fuel_entries table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS fuel_analysis (
			analysis_id       UUID              PRIMARY KEY,
			vehicle_id        TEXT              NOT NULL,
			fuel_entry_id     UUID              NOT NULL REFERENCES fuel_entries (fuel_entry_id),
			fuel_given        DOUBLE PRECISION  NOT NULL,
			distance_covered  DOUBLE PRECISION  NOT NULL,
			expected_mileage  DOUBLE PRECISION,
			actual_mileage    DOUBLE PRECISION  NOT NULL,
			fuel_variance     DOUBLE PRECISION,
			theft_flag        BOOLEAN           NOT NULL DEFAULT false,
			policy            TEXT              NOT NULL,
			analysis_date     TIMESTAMPTZ       NOT NULL DEFAULT NOW()
		);
	`, "fuel_analysis table created")
}

// ─────────────────────────────────────────────────────────────
// Step 6: risk assessments
// ─────────────────────────────────────────────────────────────
func step6_risk(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 6: risk_assessments table ──────────────")

	// Append-only: every run adds a snapshot.
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS risk_assessments (
			risk_assessment_id  UUID         PRIMARY KEY,
			vehicle_id          TEXT         NOT NULL,
			route_id            TEXT,
			assessment_date     DATE         NOT NULL,
			fuel_risk           BOOLEAN      NOT NULL,
			sla_risk            BOOLEAN      NOT NULL,
			idle_risk           BOOLEAN      NOT NULL,
			risk_score          INTEGER      NOT NULL,
			risk_level          TEXT         NOT NULL,
			policy              TEXT         NOT NULL,
			created_at          TIMESTAMPTZ  NOT NULL DEFAULT NOW(),

			CONSTRAINT chk_risk_level CHECK (risk_level IN ('LOW', 'MEDIUM', 'HIGH'))
		);
	`, "risk_assessments table created")
}

// ─────────────────────────────────────────────────────────────
// Step 7: Indexes
// ─────────────────────────────────────────────────────────────
func step7_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 7: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_gps_logs_vehicle_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_gps_logs_vehicle_time
				  ON gps_logs (vehicle_id, recorded_at DESC);`,
			why: "query: idle sample counts per vehicle",
		},
		{
			name: "idx_assignments_vehicle",
			sql: `CREATE INDEX IF NOT EXISTS idx_assignments_vehicle
				  ON geofence_assignments (vehicle_id, geofence_id)
				  WHERE is_active;`,
			why: "query: active schedule for a vehicle",
		},
		{
			name: "idx_geofence_logs_vehicle_day",
			sql: `CREATE INDEX IF NOT EXISTS idx_geofence_logs_vehicle_day
				  ON geofence_logs (vehicle_id, arrival_day DESC);`,
			why: "query: latest arrival, SLA breaches",
		},
		{
			name: "idx_penalties_vehicle_created",
			sql: `CREATE INDEX IF NOT EXISTS idx_penalties_vehicle_created
				  ON penalties (vehicle_id, created_at DESC);`,
			why: "query: penalty ledger per vehicle",
		},
		{
			name: "idx_fuel_entries_vehicle_date",
			sql: `CREATE INDEX IF NOT EXISTS idx_fuel_entries_vehicle_date
				  ON fuel_entries (vehicle_id, fuel_date DESC);`,
			why: "query: previous fill",
		},
		{
			name: "idx_fuel_analysis_vehicle_date",
			sql: `CREATE INDEX IF NOT EXISTS idx_fuel_analysis_vehicle_date
				  ON fuel_analysis (vehicle_id, analysis_date DESC);`,
			why: "query: latest analysis for risk",
		},
		{
			name: "idx_risk_vehicle_created",
			sql: `CREATE INDEX IF NOT EXISTS idx_risk_vehicle_created
				  ON risk_assessments (vehicle_id, created_at DESC);`,
			why: "query: latest risk per vehicle",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 8: Verify everything was created
// ─────────────────────────────────────────────────────────────
func step8_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 8: Verification ────────────────────────")

	tables := []string{
		"vehicles", "geofences", "geofence_assignments", "geofence_logs", "penalties",
		"gps_logs", "fuel_entries", "fuel_analysis", "risk_assessments",
	}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	var hypertableName string
	err := conn.QueryRow(ctx, `
		SELECT hypertable_name
		FROM timescaledb_information.hypertables
		WHERE hypertable_name = 'gps_logs'
	`).Scan(&hypertableName)
	if err != nil {
		log.Fatalf("gps_logs is not a hypertable: %v", err)
	}
	fmt.Printf("  ✓ hypertable: %s (time partitioned)\n", hypertableName)

	var indexCount int
	err = conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE indexname LIKE 'idx_%'
	`).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

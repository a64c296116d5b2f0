// Command seed loads the default penalty rules and a few demo drivers into a
// local database and prints a short-lived admin token for trying the API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/Temutjin2k/driver-engine/config"
	"github.com/Temutjin2k/driver-engine/internal/domain/models"
	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/Temutjin2k/driver-engine/internal/service/auth"
	"github.com/Temutjin2k/driver-engine/pkg/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	configPath = flag.String("config-path", "config.yaml", "Path to the config yaml file")
	drivers    = flag.Int("drivers", 5, "Number of demo drivers to create")
	tokenTTL   = flag.Duration("token-ttl", 12*time.Hour, "Lifetime of the printed admin token")
)

var demoFranchise = uuid.MustParse("00000000-0000-0000-0000-00000000f001")

type defaultRule struct {
	Name        string
	TriggerType types.TriggerType
	Config      string
	Severity    types.Severity
	Category    string
	Automatic   bool
	Block       bool
	Notify      models.NotifyFlags
}

var rules = []defaultRule{
	{"LATE_ARRIVAL_15", types.TriggerLateArrival, `{"delay_minutes":15}`, types.SeverityLow, "PUNCTUALITY", true, false, models.NotifyFlags{Manager: true}},
	{"THREE_COMPLAINTS", types.TriggerComplaintCount, `{"complaint_count":3,"window_days":30}`, types.SeverityCritical, "CONDUCT", true, true, models.NotifyFlags{Admin: true, Manager: true, Driver: true}},
	{"FREQUENT_CANCELLATIONS", types.TriggerCancellationCount, `{"cancellation_count":5,"window_days":7}`, types.SeverityMedium, "RELIABILITY", true, false, models.NotifyFlags{Manager: true, Driver: true}},
	{"ABSENCE_3_DAYS", types.TriggerAbsence, `{"absent_days":3,"window_days":30}`, types.SeverityHigh, "ATTENDANCE", true, false, models.NotifyFlags{Admin: true, Manager: true}},
	{"MANUAL_WARNING", types.TriggerManual, `{}`, types.SeverityMedium, "CONDUCT", false, false, models.NotifyFlags{Driver: true}},
	{"MANUAL_BLOCK", types.TriggerManual, `{}`, types.SeverityCritical, "CONDUCT", false, true, models.NotifyFlags{Admin: true, Driver: true}},
}

func main() {
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath, string(types.EngineService), "")
	if err != nil {
		log.Fatal(err)
	}

	client, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	if err := seedRules(ctx, client.Pool); err != nil {
		log.Fatal(err)
	}
	if err := seedDrivers(ctx, client.Pool, *drivers); err != nil {
		log.Fatal(err)
	}

	token, err := auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Issue(models.User{
		ID:          uuid.New(),
		Role:        types.AdminRole,
		FranchiseID: &demoFranchise,
	}, *tokenTTL)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("admin token:", token)
}

func seedRules(ctx context.Context, db *pgxpool.Pool) error {
	// short timeout for seed operations
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	batch := &pgx.Batch{}
	for _, r := range rules {
		batch.Queue(`
			INSERT INTO penalty_rules(id, name, trigger_type, trigger_config, severity, category,
				is_automatic, block_driver, notify_admin, notify_manager, notify_driver, is_active)
			VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE)
			ON CONFLICT (name) DO NOTHING`,
			uuid.New(), r.Name, r.TriggerType, r.Config, r.Severity, r.Category,
			r.Automatic, r.Block, r.Notify.Admin, r.Notify.Manager, r.Notify.Driver,
		)
	}

	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed penalty rules: %w", err)
	}
	log.Printf("penalty rules seeded: %d", len(rules))
	return nil
}

func seedDrivers(ctx context.Context, db *pgxpool.Pool, n int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	classes := []types.VehicleClass{types.EconomyClass, types.PremiumClass, types.XLClass}
	today := time.Now().UTC().Format(time.DateOnly)

	return pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		for i := range n {
			id := uuid.New()
			if _, err := tx.Exec(ctx, `
				INSERT INTO drivers(id, franchise_id, status, vehicle_class)
				VALUES($1, $2, 'ACTIVE', $3)`,
				id, demoFranchise, classes[i%len(classes)],
			); err != nil {
				return fmt.Errorf("insert driver: %w", err)
			}

			if _, err := tx.Exec(ctx, `
				INSERT INTO coordinates(entity_id, entity_type, latitude, longitude, is_current)
				VALUES($1, 'driver', $2, $3, TRUE)`,
				id, 43.238+float64(i)*0.01, 76.889+float64(i)*0.01,
			); err != nil {
				return fmt.Errorf("insert coordinates: %w", err)
			}

			if _, err := tx.Exec(ctx, `
				INSERT INTO driver_attendance(driver_id, date, checked_in, checked_in_at, status)
				VALUES($1, $2, TRUE, NOW(), 'PRESENT')`,
				id, today,
			); err != nil {
				return fmt.Errorf("insert attendance: %w", err)
			}
			log.Printf("driver created: %s", id)
		}
		return nil
	})
}

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendance/internal/attendance"
	"attendance/internal/config"
	"attendance/internal/queue"
	"attendance/internal/roster"
	"attendance/internal/store"
)

// Worker consumes clock events from the sync channel and runs the periodic
// absent/missed-clockout sweep.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	if err := store.Migrate(ctx, db.Client); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendance:clock-events")
	}

	loc := cfg.Location()
	opts := attendance.Options{
		GracePeriod:       time.Duration(cfg.GraceMinutes) * time.Minute,
		LatenessTolerance: time.Duration(cfg.LatenessMinutes) * time.Minute,
		Location:          loc,
	}

	rosterRepo := roster.NewRepository(db.Client)
	attRepo := attendance.NewRepository(db.Client)
	svc := attendance.NewService(attRepo, rosterRepo, opts, cfg.DedupWindow)
	sweep := attendance.NewSweep(attRepo, rosterRepo, opts)

	// Sweep loop. Overlapping runs are safe (every write is conditional),
	// so a long run racing the next tick cannot corrupt records.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				now := time.Now().In(loc)
				today, yesterday, err := sweep.RunWindow(ctx, now, now)
				if err != nil {
					log.Printf("sweep failed: %v", err)
					continue
				}
				log.Printf("sweep %s: scheduled=%d absent=%d missed=%d errors=%d (prev day absent=%d missed=%d)",
					today.TargetDate, today.Scheduled, today.MarkedAbsent, today.MarkedMissedClockOut,
					len(today.Errors), yesterday.MarkedAbsent, yesterday.MarkedMissedClockOut)
			case <-ctx.Done():
				return
			}
		}
	}()

	events, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for clock events...")
	for ev := range events {
		rec, err := svc.ApplyClockEvent(ctx, attendance.ClockEvent{
			ID:         ev.ID,
			EmployeeID: ev.EmployeeID,
			DeviceID:   ev.DeviceID,
			Kind:       ev.Kind,
			At:         ev.At,
		})
		if err != nil {
			if errors.Is(err, attendance.ErrConflict) || errors.Is(err, attendance.ErrNotFound) || errors.Is(err, attendance.ErrData) {
				// Business rejections are final; the audit trail plus the
				// log line is the correction queue.
				log.Printf("clock event rejected for %s (%s): %v", ev.EmployeeID, ev.Kind, err)
				continue
			}
			log.Printf("clock event failed for %s (%s): %v", ev.EmployeeID, ev.Kind, err)
			continue
		}
		if rec != nil {
			log.Printf("clock %s applied: %s %s -> %s", ev.Kind, rec.EmployeeID,
				rec.WorkDate.Format(roster.DateLayout), rec.Status)
		}
	}

	log.Println("worker stopped")
}

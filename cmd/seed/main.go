// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev class already exists.
package main

import (
	"context"
	"log"
	"time"

	classdomain "presensi-praktikum/internal/class/domain"
	classrepo "presensi-praktikum/internal/class/repository"
	"presensi-praktikum/internal/config"
	"presensi-praktikum/internal/db"
	enrollmentdomain "presensi-praktikum/internal/enrollment/domain"
	enrollmentrepo "presensi-praktikum/internal/enrollment/repository"
	policydomain "presensi-praktikum/internal/policy/domain"
	policyrepo "presensi-praktikum/internal/policy/repository"
	sessiondomain "presensi-praktikum/internal/session/domain"
	sessionrepo "presensi-praktikum/internal/session/repository"
)

// strictRegoPolicy is a sample per-class policy with a hard late cutoff,
// overriding the built-in grace-window rule for the dev class.
const strictRegoPolicy = `package presensi.classification

default status = "telat"

status = "hadir" if {
	input.checkin.elapsed_minutes <= input.class.grace_minutes
	input.checkin.distance_m <= input.class.radius_m / 2
}
`

const (
	devClassID      = "dev-class-001"
	devInstructorID = "dev-instructor-001"
	devStudent1ID   = "dev-student-001"
	devStudent2ID   = "dev-student-002"
	devSessionID    = "dev-session-001"
	devPolicyID     = "dev-policy-001"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	classes := classrepo.NewPostgresRepository(conn, cfg.ClassDefaults())

	existing, err := classes.GetClassByID(ctx, devClassID)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if existing != nil {
		log.Println("seed: dev class already exists, nothing to do")
		return
	}

	now := time.Now().UTC()
	if err := classes.CreateClass(ctx, &classdomain.Class{
		ID:        devClassID,
		Name:      "Praktikum Pemrograman Dasar",
		CreatedAt: now,
	}); err != nil {
		log.Fatalf("seed class: %v", err)
	}
	// Nil config: the repository fills it from the environment-derived defaults.
	if err := classes.UpsertConfig(ctx, devClassID, nil); err != nil {
		log.Fatalf("seed config: %v", err)
	}

	enrollments := enrollmentrepo.NewPostgresRepository(conn)
	roster := []struct {
		id, userID string
		role       enrollmentdomain.Role
	}{
		{"dev-enrollment-001", devInstructorID, enrollmentdomain.RoleInstructor},
		{"dev-enrollment-002", devStudent1ID, enrollmentdomain.RoleStudent},
		{"dev-enrollment-003", devStudent2ID, enrollmentdomain.RoleStudent},
	}
	for _, r := range roster {
		if err := enrollments.CreateEnrollment(ctx, &enrollmentdomain.Enrollment{
			ID:        r.id,
			UserID:    r.userID,
			ClassID:   devClassID,
			Role:      r.role,
			CreatedAt: now,
		}); err != nil {
			log.Fatalf("seed enrollment %s: %v", r.userID, err)
		}
	}

	sessions := sessionrepo.NewPostgresRepository(conn)
	if err := sessions.Create(ctx, &sessiondomain.Session{
		ID:            devSessionID,
		ClassID:       devClassID,
		Title:         "Minggu 1: Pengenalan",
		ScheduledDate: now.Truncate(24 * time.Hour),
		DurationMin:   30,
		RadiusM:       100,
		CreatedAt:     now,
	}); err != nil {
		log.Fatalf("seed session: %v", err)
	}

	policies := policyrepo.NewPostgresRepository(conn)
	if err := policies.Create(ctx, &policydomain.Policy{
		ID:        devPolicyID,
		ClassID:   devClassID,
		Rules:     strictRegoPolicy,
		Enabled:   false,
		CreatedAt: now,
	}); err != nil {
		log.Fatalf("seed policy: %v", err)
	}

	log.Printf("seed: created class %s with instructor %s and %d students", devClassID, devInstructorID, len(roster)-1)
}

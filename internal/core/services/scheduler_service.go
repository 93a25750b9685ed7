package services

import (
	"context"
	"log"

	"easymoney-loans/internal/core/domain"

	"github.com/robfig/cron/v3"
)

// SchedulerService runs the nightly auto-backup when the admin has
// enabled it. The schedule itself comes from configuration; whether a
// run actually happens is decided per tick from the stored settings.
type SchedulerService struct {
	backupService *BackupService
	cronSpec      string
	cron          *cron.Cron
}

// NewSchedulerService creates a new scheduler service
func NewSchedulerService(backupService *BackupService, cronSpec string) *SchedulerService {
	return &SchedulerService{
		backupService: backupService,
		cronSpec:      cronSpec,
		cron:          cron.New(),
	}
}

// Start registers the backup job and launches the scheduler
func (s *SchedulerService) Start() error {
	if _, err := s.cron.AddFunc(s.cronSpec, s.runAutoBackup); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("🚀 Scheduler started (auto-backup spec: %s)", s.cronSpec)
	return nil
}

// Stop shuts the scheduler down, waiting for a running job to finish
func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("🛑 Scheduler stopped")
}

func (s *SchedulerService) runAutoBackup() {
	ctx := context.Background()
	if !s.backupService.AutoBackupEnabled(ctx) {
		return
	}

	system := domain.Actor{
		ID:   "system",
		Name: "Auto Backup",
		Role: domain.RoleAdmin,
	}
	result, _, err := s.backupService.Create(ctx, "", system)
	if err != nil {
		log.Printf("❌ Auto-backup failed: %v", err)
		return
	}
	log.Printf("✅ Auto-backup written: %s (%s)", result.Filename, result.BackupSize)
}

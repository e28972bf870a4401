package scheduler

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/loremaster/internal/entities"
	"github.com/mrlokans/loremaster/internal/exporters"
	"github.com/mrlokans/loremaster/internal/kv"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule checks a five-field cron expression.
func ValidateCronSchedule(schedule string) error {
	_, err := cronParser.Parse(schedule)
	return err
}

// Exporter exports the whole library.
type Exporter interface {
	ExportAll() (exporters.ExportResult, error)
}

// BackupConfig configures a BackupScheduler.
type BackupConfig struct {
	Enabled  bool
	Schedule string
}

// BackupStatus is the outcome of the last backup run.
type BackupStatus struct {
	LastRunAt time.Time
	Status    string
	Message   string
}

// BackupScheduler periodically exports every lorebook held by the service.
type BackupScheduler struct {
	exporter Exporter
	status   kv.Store
	config   BackupConfig

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	runMu      sync.Mutex
	isRunning  bool
	cancelFunc context.CancelFunc
	now        func() time.Time
}

// NewBackupScheduler creates a scheduler. status receives the outcome of
// each run and may be nil.
func NewBackupScheduler(exporter Exporter, status kv.Store, config BackupConfig) *BackupScheduler {
	return &BackupScheduler{
		exporter: exporter,
		status:   status,
		config:   config,
		cron:     cron.New(cron.WithParser(cronParser)),
		now:      time.Now,
	}
}

// Start begins the scheduler if backups are enabled
func (s *BackupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if !s.config.Enabled {
		log.Printf("Backup scheduler: disabled")
		return nil
	}

	if err := ValidateCronSchedule(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.config.Schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.runBackup()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule backup job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Backup scheduler: started with schedule '%s'", s.config.Schedule)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler
func (s *BackupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	// Stop accepting new jobs and wait for running jobs to complete
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.cron.Remove(s.entryID)
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	s.isRunning = false

	log.Printf("Backup scheduler: stopped")
}

// RunNow performs a backup immediately and returns its status.
func (s *BackupScheduler) RunNow() BackupStatus {
	return s.runBackup()
}

// IsRunning returns whether the scheduler is active
func (s *BackupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next backup will occur
func (s *BackupScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// LastStatus reads the outcome of the last run, if one was recorded.
func (s *BackupScheduler) LastStatus() (*BackupStatus, error) {
	if s.status == nil {
		return nil, nil
	}

	at, ok, err := s.status.Get(entities.SettingKeyBackupLastAt)
	if err != nil || !ok {
		return nil, err
	}
	status, _, err := s.status.Get(entities.SettingKeyBackupLastStatus)
	if err != nil {
		return nil, err
	}
	message, _, err := s.status.Get(entities.SettingKeyBackupLastMessage)
	if err != nil {
		return nil, err
	}

	millis, err := strconv.ParseInt(at, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid backup timestamp %q: %w", at, err)
	}
	return &BackupStatus{LastRunAt: time.UnixMilli(millis), Status: status, Message: message}, nil
}

// runBackup performs the actual export. Runs never overlap.
func (s *BackupScheduler) runBackup() BackupStatus {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	log.Printf("Backup: starting export")
	startTime := s.now()

	result, err := s.exporter.ExportAll()
	if err != nil {
		errMsg := fmt.Sprintf("Export failed: %v", err)
		log.Printf("Backup: %s", errMsg)
		return s.record(startTime, StatusFailed, errMsg)
	}

	successMsg := fmt.Sprintf("Exported %d lorebooks, %d entries, %d failed in %v",
		result.BooksProcessed, result.EntriesProcessed, result.BooksFailed,
		s.now().Sub(startTime).Round(time.Millisecond))
	log.Printf("Backup: %s", successMsg)
	return s.record(startTime, StatusSuccess, successMsg)
}

func (s *BackupScheduler) record(at time.Time, status, message string) BackupStatus {
	result := BackupStatus{LastRunAt: at, Status: status, Message: message}
	if s.status == nil {
		return result
	}

	values := map[string]string{
		entities.SettingKeyBackupLastAt:      strconv.FormatInt(at.UnixMilli(), 10),
		entities.SettingKeyBackupLastStatus:  status,
		entities.SettingKeyBackupLastMessage: message,
	}
	for key, value := range values {
		if err := s.status.Set(key, value); err != nil {
			log.Printf("Backup: failed to record status: %v", err)
		}
	}
	return result
}

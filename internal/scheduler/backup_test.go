package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/loremaster/internal/exporters"
	"github.com/mrlokans/loremaster/internal/kv"
)

type fakeExporter struct {
	calls  int
	result exporters.ExportResult
	err    error
}

func (f *fakeExporter) ExportAll() (exporters.ExportResult, error) {
	f.calls++
	return f.result, f.err
}

func TestValidateCronSchedule(t *testing.T) {
	assert.NoError(t, ValidateCronSchedule("0 3 * * *"))
	assert.NoError(t, ValidateCronSchedule("*/5 * * * *"))
	assert.Error(t, ValidateCronSchedule("not a schedule"))
	assert.Error(t, ValidateCronSchedule("0 0 3 * * *"))
}

func TestBackupScheduler_RunNow(t *testing.T) {
	t.Run("records success", func(t *testing.T) {
		store := kv.NewMemory()
		exporter := &fakeExporter{result: exporters.ExportResult{BooksProcessed: 2, EntriesProcessed: 5}}
		s := NewBackupScheduler(exporter, store, BackupConfig{})

		status := s.RunNow()
		assert.Equal(t, StatusSuccess, status.Status)
		assert.Contains(t, status.Message, "Exported 2 lorebooks, 5 entries")
		assert.Equal(t, 1, exporter.calls)

		last, err := s.LastStatus()
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.Equal(t, StatusSuccess, last.Status)
		assert.Equal(t, status.Message, last.Message)
		assert.Equal(t, status.LastRunAt.UnixMilli(), last.LastRunAt.UnixMilli())
	})

	t.Run("records failure", func(t *testing.T) {
		store := kv.NewMemory()
		s := NewBackupScheduler(&fakeExporter{err: errors.New("disk full")}, store, BackupConfig{})

		status := s.RunNow()
		assert.Equal(t, StatusFailed, status.Status)
		assert.Contains(t, status.Message, "disk full")

		last, err := s.LastStatus()
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, last.Status)
	})

	t.Run("works without a status store", func(t *testing.T) {
		s := NewBackupScheduler(&fakeExporter{}, nil, BackupConfig{})
		assert.Equal(t, StatusSuccess, s.RunNow().Status)

		last, err := s.LastStatus()
		assert.NoError(t, err)
		assert.Nil(t, last)
	})
}

func TestBackupScheduler_StartStop(t *testing.T) {
	t.Run("disabled scheduler does not start", func(t *testing.T) {
		s := NewBackupScheduler(&fakeExporter{}, nil, BackupConfig{Enabled: false, Schedule: "0 3 * * *"})
		require.NoError(t, s.Start(context.Background()))
		assert.False(t, s.IsRunning())
		assert.Nil(t, s.GetNextRunTime())
	})

	t.Run("invalid schedule is rejected", func(t *testing.T) {
		s := NewBackupScheduler(&fakeExporter{}, nil, BackupConfig{Enabled: true, Schedule: "bogus"})
		assert.Error(t, s.Start(context.Background()))
		assert.False(t, s.IsRunning())
	})

	t.Run("enabled scheduler runs until stopped", func(t *testing.T) {
		s := NewBackupScheduler(&fakeExporter{}, nil, BackupConfig{Enabled: true, Schedule: "0 3 * * *"})
		require.NoError(t, s.Start(context.Background()))
		assert.True(t, s.IsRunning())

		next := s.GetNextRunTime()
		require.NotNil(t, next)
		assert.True(t, next.After(time.Now()))

		s.Stop()
		assert.False(t, s.IsRunning())
	})

	t.Run("context cancellation stops the scheduler", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		s := NewBackupScheduler(&fakeExporter{}, nil, BackupConfig{Enabled: true, Schedule: "0 3 * * *"})
		require.NoError(t, s.Start(ctx))

		cancel()
		assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 10*time.Millisecond)
	})
}

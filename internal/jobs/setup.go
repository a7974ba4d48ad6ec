package jobs

import (
	"github.com/rl1809/crm/internal/config"
	"github.com/rl1809/crm/internal/platform/logger"
)

// NewFromConfig builds a scheduler with all four jobs registered.
func NewFromConfig(cfg config.Jobs, reader Reader, restocker Restocker, probes []Probe, log *logger.Logger) (*Scheduler, error) {
	s := NewScheduler(cfg.Timeout, log)

	entries := []struct {
		spec string
		job  Job
	}{
		{cfg.Heartbeat.Schedule, NewHeartbeat(NewFileSink(cfg.Heartbeat.LogFile), probes, log)},
		{cfg.Report.Schedule, NewReport(NewFileSink(cfg.Report.LogFile), reader, log)},
		{cfg.Reminders.Schedule, NewReminders(NewFileSink(cfg.Reminders.LogFile), reader, cfg.ReminderDays, log)},
		{cfg.Restock.Schedule, NewRestock(NewFileSink(cfg.Restock.LogFile), restocker, log)},
	}
	for _, e := range entries {
		if err := s.Add(e.spec, e.job); err != nil {
			return nil, err
		}
	}
	return s, nil
}

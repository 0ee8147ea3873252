package history

import "time"

// TaskExecution is one row of the append-only task history log. It
// records what the scheduler engine did, never what it should do next:
// the history store is observational only and is never read back to
// reconstruct in-flight task state after a restart.
type TaskExecution struct {
	ID uint `gorm:"primarykey"`

	TaskID        string `gorm:"index;size:36"`
	SchedulerName string `gorm:"index;size:128"`
	State         string `gorm:"size:16"` // scheduled, cancelled, started, finished, failed

	MaskName    string `gorm:"size:64"`
	Pathname    string `gorm:"size:4096"`
	SrcPathname string `gorm:"size:4096"`
	Detail      string `gorm:"size:4096"`

	CreatedAt time.Time `gorm:"index"`
}

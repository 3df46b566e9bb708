// services/scheduler.go
package services

import (
	"log"
	"time"

	"fitness-progression-system/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// StartWeeklyReset zeroes every projection's weekly XP at the start of each
// ISO week. The Redis board does not need a reset — its key rotates with the
// week.
func (s *ProgressionService) StartWeeklyReset() {
	sched, _ := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	sched.Start()

	// Monday 00:00 UTC
	_, _ = sched.NewJob(
		gocron.CronJob("0 0 * * 1", false),
		gocron.NewTask(func() {
			res := s.DB.Model(&models.UserStats{}).
				Where("weekly_xp > 0").
				Updates(map[string]interface{}{
					"weekly_xp":  0,
					"version":    gorm.Expr("version + 1"), // forces in-flight grants to retry
					"updated_at": time.Now().UTC(),
				})
			if res.Error != nil {
				log.Printf("[Scheduler] weekly XP reset failed: %v", res.Error)
				return
			}
			log.Printf("✅ Weekly XP reset for %d users", res.RowsAffected)
		}),
	)
}

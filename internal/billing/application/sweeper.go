package application

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sebuszqo/PlanCheckout/internal/billing/domain"
)

const (
	SweepSchedule     = "@every 1m"
	ExpiredDesc       = "expired"
	DefaultPendingTTL = 15 * time.Minute
)

// Sweeper fails payments that stayed pending longer than the TTL, so abandoned push prompts
// and checkout pages never settle late.
type Sweeper struct {
	repo domain.PaymentRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewSweeper(repo domain.PaymentRepository, ttl time.Duration) *Sweeper {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &Sweeper{repo: repo, ttl: ttl, now: time.Now}
}

func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	return s.repo.ExpirePendingBefore(ctx, s.now().Add(-s.ttl), ExpiredDesc)
}

// Schedule registers the sweep on c. The caller owns c's lifecycle.
func (s *Sweeper) Schedule(c *cron.Cron) error {
	_, err := c.AddFunc(SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := s.Sweep(ctx)
		if err != nil {
			log.Printf("[Billing] sweep failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("[Billing] expired %d pending payments", n)
		}
	})
	return err
}

package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dealdock/internal/config"
	"github.com/sells-group/dealdock/internal/dock"
	"github.com/sells-group/dealdock/internal/model"
)

// Checker evaluates every finished board pass and forwards alerts, sending
// each alert type at most once per cooldown.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	lastSent map[AlertType]time.Time
}

// NewChecker creates a pass checker. A zero cooldown defaults to 15 minutes.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	cooldown := time.Duration(cfg.CooldownSecs) * time.Second
	if cooldown <= 0 {
		cooldown = 15 * time.Minute
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cooldown:  cooldown,
		now:       func() time.Time { return time.Now().UTC() },
		lastSent:  make(map[AlertType]time.Time),
	}
}

// Hook adapts the checker to the board's pass hook.
func (c *Checker) Hook() dock.PassHook {
	return func(ctx context.Context, report dock.PassReport, deals []model.Deal) {
		c.Check(ctx, report, deals)
	}
}

// Check evaluates one pass. It returns the alerts that were due, whether or
// not the webhook accepted them.
func (c *Checker) Check(ctx context.Context, report dock.PassReport, deals []model.Deal) []Alert {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	snap := c.collector.Collect(report, deals)
	alerts := c.due(c.alerter.Evaluate(snap))
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts
}

// due drops alerts whose type fired within the cooldown and stamps the rest.
func (c *Checker) due(alerts []Alert) []Alert {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Alert
	for _, a := range alerts {
		if last, ok := c.lastSent[a.Type]; ok && now.Sub(last) < c.cooldown {
			continue
		}
		c.lastSent[a.Type] = now
		out = append(out, a)
	}
	return out
}

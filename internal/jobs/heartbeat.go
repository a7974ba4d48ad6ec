package jobs

import (
	"context"
	"fmt"

	"github.com/rl1809/crm/internal/platform/logger"
)

const heartbeatLayout = "02/01/2006-15:04:05"

type Heartbeat struct {
	base
	probes []Probe
}

func NewHeartbeat(sink Sink, probes []Probe, log *logger.Logger) *Heartbeat {
	return &Heartbeat{base: newBase("heartbeat", sink, log), probes: probes}
}

func (h *Heartbeat) Name() string { return "heartbeat" }

// Run records that the process is alive, then checks each probe. A failing
// probe is reported but does not stop the others.
func (h *Heartbeat) Run(ctx context.Context) {
	ts := h.now().Format(heartbeatLayout)
	h.write(fmt.Sprintf("%s CRM is alive", ts))

	for _, p := range h.probes {
		if err := p.Pinger.Ping(ctx); err != nil {
			h.log.Warn("probe failed", "probe", p.Name, "error", err)
			h.write(fmt.Sprintf("%s CRM %s check failed: %v", ts, p.Name, err))
			continue
		}
		h.write(fmt.Sprintf("%s CRM %s responsive", ts, p.Name))
	}
}

package analysis

import (
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	hostenv "github.com/pandeptwidyaop/cmdprobe/internal/host"
	"github.com/pandeptwidyaop/cmdprobe/internal/models"
)

// SessionCollector gathers best-effort host and workspace context for a
// captured result. Unavailable fields are simply omitted.
type SessionCollector struct {
	env             hostenv.Environment
	hostVersion     string
	watchedSettings []string
}

// NewSessionCollector builds a SessionCollector. hostVersion identifies the
// running server build.
func NewSessionCollector(env hostenv.Environment, hostVersion string, watchedSettings []string) *SessionCollector {
	return &SessionCollector{
		env:             env,
		hostVersion:     hostVersion,
		watchedSettings: watchedSettings,
	}
}

// Collect captures the current session context. Collection never fails;
// inaccessible system details are left at their zero value.
func (c *SessionCollector) Collect() models.TestSession {
	session := models.TestSession{
		HostVersion: c.hostVersion,
		CapturedAt:  time.Now(),
	}

	if info, err := host.Info(); err == nil {
		session.Hostname = info.Hostname
		session.Platform = info.Platform
		session.PlatformVersion = info.PlatformVersion
		session.UptimeSeconds = info.Uptime
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		session.MemoryUsedPercent = vm.UsedPercent
	}

	if c.env != nil {
		session.WorkspaceRoots = c.env.WorkspaceRoots()
		session.OpenDocumentCount = len(c.env.OpenDocuments())
		settings := make(map[string]any)
		for _, key := range c.watchedSettings {
			if v, ok := c.env.Setting(key); ok {
				settings[key] = v
			}
		}
		if len(settings) > 0 {
			session.Settings = settings
		}
	}
	return session
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/banshee-data/camerad/internal/control"
	"github.com/banshee-data/camerad/internal/deploy"
)

// Monitor checks the status and health of a camerad deployment
type Monitor struct {
	Target        string
	SSHUser       string
	SSHKey        string
	IdentityAgent string
	APIPort       int
}

// HealthStatus represents the health check result
type HealthStatus struct {
	Healthy bool
	Message string
	Details string
}

// SystemStatus aggregates what the daemon and the host report about one
// deployment.
type SystemStatus struct {
	Target        string
	ServiceActive bool
	ServiceSince  string
	Daemon        *control.Status
	DaemonErr     string
	DBSize        string
	DiskUsage     string
}

// FormatStatus renders the status for terminal output.
func (s *SystemStatus) FormatStatus() string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== camerad on %s ===\n\n", s.Target)

	if s.ServiceActive {
		b.WriteString("Service: active\n")
		if s.ServiceSince != "" {
			fmt.Fprintf(&b, "Since: %s\n", s.ServiceSince)
		}
	} else {
		b.WriteString("Service: NOT RUNNING\n")
	}

	if s.Daemon != nil {
		d := s.Daemon
		fmt.Fprintf(&b, "\nCamera state: %s (generation %d)\n", d.State, d.Generation)
		fmt.Fprintf(&b, "Frame: %s %dx%d %s\n", d.Config.FrameID, d.Config.Width, d.Config.Height, d.Config.PixelFormat)
		if d.Device != nil {
			fmt.Fprintf(&b, "Device: %s serial %s\n", d.Device.Model, d.Device.Serial)
		}
		fmt.Fprintf(&b, "Frames: %d seen, %d dropped, %d stale\n", d.FramesSeen, d.FramesDropped, d.FramesStale)
		fmt.Fprintf(&b, "Rectification: valid=%v\n", d.RectifyValid)
	} else if s.DaemonErr != "" {
		fmt.Fprintf(&b, "\nDaemon API: %s\n", s.DaemonErr)
	}

	if s.DBSize != "" {
		fmt.Fprintf(&b, "\nCalibration DB: %s\n", s.DBSize)
	}
	if s.DiskUsage != "" {
		fmt.Fprintf(&b, "Disk: %s\n", s.DiskUsage)
	}

	return b.String()
}

// GetStatus collects service, daemon and storage status from the target.
func (m *Monitor) GetStatus(ctx context.Context) (*SystemStatus, error) {
	exec := newExecutor(m.Target, m.SSHUser, m.SSHKey, m.IdentityAgent, false)

	status := &SystemStatus{Target: m.targetLabel()}
	m.collectHostStatus(exec, status)

	daemon, err := m.fetchDaemonStatus(ctx)
	if err != nil {
		status.DaemonErr = err.Error()
	} else {
		status.Daemon = daemon
	}

	return status, nil
}

func (m *Monitor) collectHostStatus(exec *deploy.Executor, status *SystemStatus) {
	output, err := exec.Run(fmt.Sprintf("systemctl is-active %s.service 2>/dev/null || echo 'inactive'", serviceName))
	if err == nil && strings.TrimSpace(output) == "active" {
		status.ServiceActive = true
	}

	if status.ServiceActive {
		output, err = exec.Run(fmt.Sprintf("systemctl show %s.service --property=ActiveEnterTimestamp --value", serviceName))
		if err == nil {
			status.ServiceSince = strings.TrimSpace(output)
		}
	}

	output, err = exec.Run(fmt.Sprintf("du -h %s 2>/dev/null | cut -f1", dbPath))
	if err == nil && strings.TrimSpace(output) != "" {
		status.DBSize = strings.TrimSpace(output)
	}

	output, err = exec.Run(fmt.Sprintf("df -h %s 2>/dev/null | tail -1 | awk '{print $3 \" used of \" $2 \" (\" $5 \")\"}'", dataDir))
	if err == nil && strings.TrimSpace(output) != "" {
		status.DiskUsage = strings.TrimSpace(output)
	}
}

// CheckHealth performs a health check on the deployment
func (m *Monitor) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	exec := newExecutor(m.Target, m.SSHUser, m.SSHKey, m.IdentityAgent, false)

	var details strings.Builder
	healthy := true
	message := "All checks passed"

	// Check 1: Service is running
	output, err := exec.Run(fmt.Sprintf("systemctl is-active %s.service 2>/dev/null || echo 'inactive'", serviceName))
	serviceActive := err == nil && strings.TrimSpace(output) == "active"
	if serviceActive {
		details.WriteString("✓ Service: RUNNING\n")
	} else {
		details.WriteString("✗ Service: NOT RUNNING\n")
		healthy = false
		message = "Service is not running"
	}

	// Check 2: Service start time
	if serviceActive {
		output, err = exec.Run(fmt.Sprintf("systemctl show %s.service --property=ActiveEnterTimestamp --value", serviceName))
		if err == nil && strings.TrimSpace(output) != "" {
			details.WriteString(fmt.Sprintf("  Started: %s\n", strings.TrimSpace(output)))
		}
	}

	// Check 3: Recent log errors
	output, err = exec.Run(fmt.Sprintf("journalctl -u %s.service -n 20 --no-pager 2>/dev/null | grep -ci error || true", serviceName))
	if err == nil {
		errorCount := strings.TrimSpace(output)
		if errorCount != "" && errorCount != "0" {
			details.WriteString(fmt.Sprintf("⚠ Recent errors in logs: %s\n", errorCount))
			if count := parseCount(errorCount); count > 5 {
				healthy = false
				message = "Multiple errors in recent logs"
			}
		} else {
			details.WriteString("✓ Logs: no recent errors\n")
		}
	}

	// Check 4: Daemon API responds
	daemon, err := m.fetchDaemonStatusWithContext(ctx, 5*time.Second)
	if err != nil {
		details.WriteString(fmt.Sprintf("✗ API: NOT RESPONDING (%v)\n", err))
		healthy = false
		message = "Daemon API is not responding"
	} else {
		details.WriteString("✓ API: RESPONDING\n")
		details.WriteString(fmt.Sprintf("  State: %s (generation %d)\n", daemon.State, daemon.Generation))
		details.WriteString(fmt.Sprintf("  Frame: %s, %d seen, %d dropped\n", daemon.Config.FrameID, daemon.FramesSeen, daemon.FramesDropped))
		if daemon.Device != nil {
			details.WriteString(fmt.Sprintf("  Device: %s serial %s\n", daemon.Device.Model, daemon.Device.Serial))
		}
	}

	// Check 5: Calibration database exists
	output, err = exec.Run(fmt.Sprintf("test -f %s && du -h %s | cut -f1 || echo 'missing'", dbPath, dbPath))
	if err == nil {
		size := strings.TrimSpace(output)
		if size == "missing" {
			details.WriteString("⚠ Calibration DB: not found\n")
		} else {
			details.WriteString(fmt.Sprintf("✓ Calibration DB: %s\n", size))
		}
	}

	return &HealthStatus{
		Healthy: healthy,
		Message: message,
		Details: details.String(),
	}, nil
}

func (m *Monitor) fetchDaemonStatus(ctx context.Context) (*control.Status, error) {
	return m.fetchDaemonStatusWithContext(ctx, 10*time.Second)
}

func (m *Monitor) fetchDaemonStatusWithContext(ctx context.Context, timeout time.Duration) (*control.Status, error) {
	url := fmt.Sprintf("http://%s:%d/api/status", m.apiHost(), m.apiPort())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	return parseDaemonStatus(body)
}

func parseDaemonStatus(body []byte) (*control.Status, error) {
	var status control.Status
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}
	return &status, nil
}

// apiHost returns the host to reach the daemon API on. SSH user prefixes
// are stripped; a local target maps to localhost.
func (m *Monitor) apiHost() string {
	host := m.Target
	if idx := strings.Index(host, "@"); idx >= 0 {
		host = host[idx+1:]
	}
	if host == "" || host == "localhost" || host == "127.0.0.1" {
		return "localhost"
	}
	return host
}

func (m *Monitor) apiPort() int {
	if m.APIPort == 0 {
		return 8080
	}
	return m.APIPort
}

func (m *Monitor) targetLabel() string {
	if m.Target == "" || m.Target == "localhost" || m.Target == "127.0.0.1" {
		return "local"
	}
	return m.Target
}

func parseCount(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

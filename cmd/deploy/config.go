package main

import (
	"fmt"
	"strings"

	"github.com/banshee-data/camerad/internal/config"
)

// ConfigManager handles configuration management
type ConfigManager struct {
	Target        string
	SSHUser       string
	SSHKey        string
	IdentityAgent string
}

// Show displays the current configuration
func (c *ConfigManager) Show() error {
	exec := newExecutor(c.Target, c.SSHUser, c.SSHKey, c.IdentityAgent, false)

	fmt.Println("Current camerad configuration:")
	fmt.Println()

	// Show daemon config
	fmt.Println("=== Daemon Configuration ===")
	configOutput, err := exec.RunSudo(fmt.Sprintf("cat %s", configPath))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	fmt.Println(configOutput)

	// Show service file
	fmt.Println("\n=== Service Unit ===")
	serviceOutput, err := exec.RunSudo(fmt.Sprintf("cat %s", servicePath))
	if err != nil {
		fmt.Printf("Warning: could not read service file: %v\n", err)
	} else {
		fmt.Println(serviceOutput)
	}

	// Show data directory info
	fmt.Println("\n=== Data Directory ===")
	dataInfo, err := exec.RunSudo(fmt.Sprintf("ls -lh %s/", dataDir))
	if err != nil {
		fmt.Printf("Warning: could not read data directory: %v\n", err)
	} else {
		fmt.Println(dataInfo)
	}

	// Show service status
	fmt.Println("\n=== Service Status ===")
	statusOutput, err := exec.RunSudo(fmt.Sprintf("systemctl status %s.service --no-pager", serviceName))
	if err != nil {
		fmt.Printf("Warning: could not get service status: %v\n", err)
	} else {
		fmt.Println(statusOutput)
	}

	// Show recent logs
	fmt.Println("\n=== Recent Logs (last 10 lines) ===")
	logsOutput, err := exec.RunSudo(fmt.Sprintf("journalctl -u %s.service -n 10 --no-pager", serviceName))
	if err != nil {
		fmt.Printf("Warning: could not read logs: %v\n", err)
	} else {
		fmt.Println(logsOutput)
	}

	return nil
}

// Push validates a daemon config file locally, copies it to the target and
// optionally restarts the service.
func (c *ConfigManager) Push(file string) error {
	// Validate before touching the target. A config the daemon cannot load
	// would leave the service crash-looping.
	cfg, err := config.LoadDaemonConfig(file)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Printf("Validated %s:\n", file)
	fmt.Printf("  Listen: %s\n", cfg.GetListen())
	fmt.Printf("  Dev mode: %v\n", cfg.GetDevMode())
	fmt.Printf("  Frame: %s\n", cfg.Camera.FrameID)
	fmt.Println()

	exec := newExecutor(c.Target, c.SSHUser, c.SSHKey, c.IdentityAgent, false)

	fmt.Printf("Pushing configuration to %s...\n", configPath)
	if err := exec.CopyFile(file, configPath); err != nil {
		return fmt.Errorf("failed to copy config: %w", err)
	}
	fmt.Println("  ✓ Configuration pushed")

	// Ask if user wants to restart service
	fmt.Print("\nRestart service now to apply changes? [y/N]: ")
	var restart string
	fmt.Scanln(&restart)

	if strings.ToLower(restart) == "y" {
		fmt.Println("Restarting service...")
		_, err = exec.RunSudo(fmt.Sprintf("systemctl restart %s.service", serviceName))
		if err != nil {
			return fmt.Errorf("failed to restart service: %w", err)
		}

		// Wait and check status
		exec.Run(fmt.Sprintf("sleep %d", int(serviceStopGracePeriod.Seconds())))

		statusOutput, err := exec.RunSudo(fmt.Sprintf("systemctl is-active %s.service", serviceName))
		if err != nil || strings.TrimSpace(statusOutput) != "active" {
			fmt.Println("⚠ Warning: Service may not have started properly")
			fmt.Println("Check status with: camerad-deploy status")
			return nil
		}

		fmt.Println("  ✓ Service restarted successfully")
	} else {
		fmt.Println("Configuration updated. Restart service to apply changes:")
		fmt.Printf("  sudo systemctl restart %s.service\n", serviceName)
	}

	return nil
}

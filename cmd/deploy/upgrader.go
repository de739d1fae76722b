package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/camerad/internal/deploy"
)

// Service management timing constants
const (
	// serviceStopGracePeriod is the time to wait after stopping the service
	// to allow systemd to fully terminate the process
	serviceStopGracePeriod = 2 * time.Second
	// serviceStartGracePeriod is the time to wait after starting the service
	// to allow it to initialize and be ready for health checks
	serviceStartGracePeriod = 3 * time.Second
)

// Upgrader handles upgrading camerad to a new version
type Upgrader struct {
	Target        string
	SSHUser       string
	SSHKey        string
	IdentityAgent string
	BinaryPath    string
	DryRun        bool
	NoBackup      bool
}

// Upgrade performs the upgrade
func (u *Upgrader) Upgrade() error {
	exec := newExecutor(u.Target, u.SSHUser, u.SSHKey, u.IdentityAgent, u.DryRun)

	fmt.Println("Starting upgrade of camerad...")

	// Step 1: Check if service is installed
	if installed, err := u.checkInstalled(exec); err != nil {
		return fmt.Errorf("failed to check installation: %w", err)
	} else if !installed {
		return fmt.Errorf("camerad is not installed. Use 'install' command first")
	}

	// Step 2: Get current version info
	currentVersion, err := u.getCurrentVersion(exec)
	if err != nil {
		fmt.Printf("Warning: could not determine current version: %v\n", err)
		currentVersion = "unknown"
	}
	fmt.Printf("Current version: %s\n", currentVersion)

	// Step 3: Backup current installation
	if !u.NoBackup {
		if err := u.backupCurrent(exec); err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
	} else {
		fmt.Println("Skipping backup (--no-backup flag set)")
	}

	// Step 4: Stop service
	if err := u.stopService(exec); err != nil {
		return fmt.Errorf("failed to stop service: %w", err)
	}

	// Step 5: Install new binary
	if err := u.installNewBinary(exec); err != nil {
		return fmt.Errorf("failed to install new binary: %w", err)
	}

	// Step 6: Start service
	if err := u.startService(exec); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	// Step 7: Verify service is healthy
	if err := u.verifyHealth(exec); err != nil {
		fmt.Println("\n⚠ Warning: Service health check failed!")
		fmt.Println("You may want to rollback using: camerad-deploy rollback")
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Println("\n✓ Upgrade completed successfully!")
	return nil
}

func (u *Upgrader) checkInstalled(exec *deploy.Executor) (bool, error) {
	output, err := exec.Run(fmt.Sprintf("test -f %s && echo 'exists' || echo 'not found'", servicePath))
	if err != nil {
		return false, err
	}

	return strings.TrimSpace(output) == "exists", nil
}

func (u *Upgrader) getCurrentVersion(exec *deploy.Executor) (string, error) {
	output, err := exec.Run(fmt.Sprintf("%s -version 2>&1 || echo 'unknown'", installPath))
	if err != nil {
		return "unknown", err
	}

	version := strings.TrimSpace(output)
	if version == "" || strings.Contains(version, "unknown") {
		// Fall back to the binary's modification time.
		timeOutput, err := exec.Run(fmt.Sprintf("stat -c %%Y %s 2>/dev/null || echo '0'", installPath))
		if err == nil && strings.TrimSpace(timeOutput) != "0" {
			return fmt.Sprintf("installed-%s", strings.TrimSpace(timeOutput)), nil
		}
		return "unknown", nil
	}

	return version, nil
}

func (u *Upgrader) backupCurrent(exec *deploy.Executor) error {
	fmt.Println("Backing up current installation...")

	timestamp := time.Now().Format("20060102-150405")
	backupDir := fmt.Sprintf("%s/%s", backupsDir, timestamp)

	_, err := exec.RunSudo(fmt.Sprintf("mkdir -p %s && chown -R %s:%s %s", backupDir, serviceUser, serviceUser, backupDir))
	if err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	// Backup binary
	debugLog("Backing up binary from %s to %s/camerad", installPath, backupDir)
	output, err := exec.RunSudo(fmt.Sprintf("cp %s %s/camerad", installPath, backupDir))
	if err != nil {
		return fmt.Errorf("failed to backup binary to %s: %w (output: %s)", backupDir, err, output)
	}
	debugLog("Binary backup successful")

	// Backup calibration database
	debugLog("Checking for calibration database at %s", dbPath)
	output, err = exec.Run(fmt.Sprintf("test -f %s && echo 'exists' || echo 'not found'", dbPath))
	if err == nil && strings.TrimSpace(output) == "exists" {
		if output, err := exec.RunSudo(fmt.Sprintf("cp %s %s/calibration.db", dbPath, backupDir)); err != nil {
			fmt.Printf("Warning: could not backup database: %v (output: %s)\n", err, output)
		} else {
			debugLog("Database backup successful")
		}
	} else {
		debugLog("No calibration database found, skipping")
	}

	// Save version info
	versionInfo := fmt.Sprintf("Backup created: %s\nBinary: %s\n", timestamp, installPath)
	tempFile := "/tmp/camerad-backup-version.txt"
	if err := exec.WriteFile(tempFile, versionInfo); err != nil {
		fmt.Printf("Warning: could not write version info: %v\n", err)
	} else if _, err := exec.RunSudo(fmt.Sprintf("mv %s %s/version.txt", tempFile, backupDir)); err != nil {
		fmt.Printf("Warning: could not store version info: %v\n", err)
	}

	fmt.Printf("  ✓ Backup saved to: %s\n", backupDir)
	return nil
}

func (u *Upgrader) stopService(exec *deploy.Executor) error {
	fmt.Println("Stopping service...")

	_, err := exec.RunSudo(fmt.Sprintf("systemctl stop %s.service", serviceName))
	if err != nil {
		return err
	}

	exec.Run(fmt.Sprintf("sleep %d", int(serviceStopGracePeriod.Seconds())))

	fmt.Println("  ✓ Service stopped")
	return nil
}

func (u *Upgrader) installNewBinary(exec *deploy.Executor) error {
	fmt.Printf("Installing new binary from: %s\n", u.BinaryPath)

	tempPath := "/tmp/camerad-new"
	if err := exec.CopyFile(u.BinaryPath, tempPath); err != nil {
		return fmt.Errorf("failed to copy binary: %w", err)
	}

	_, err := exec.RunSudo(fmt.Sprintf("mv %s %s", tempPath, installPath))
	if err != nil {
		return fmt.Errorf("failed to move binary: %w", err)
	}

	_, err = exec.RunSudo(fmt.Sprintf("chown root:root %s", installPath))
	if err != nil {
		return fmt.Errorf("failed to set ownership: %w", err)
	}

	_, err = exec.RunSudo(fmt.Sprintf("chmod 0755 %s", installPath))
	if err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	fmt.Println("  ✓ New binary installed")
	return nil
}

func (u *Upgrader) startService(exec *deploy.Executor) error {
	fmt.Println("Starting service...")

	_, err := exec.RunSudo(fmt.Sprintf("systemctl start %s.service", serviceName))
	if err != nil {
		return err
	}

	exec.Run(fmt.Sprintf("sleep %d", int(serviceStartGracePeriod.Seconds())))

	fmt.Println("  ✓ Service started")
	return nil
}

func (u *Upgrader) verifyHealth(exec *deploy.Executor) error {
	fmt.Println("Verifying service health...")

	output, err := exec.RunSudo(fmt.Sprintf("systemctl is-active %s.service", serviceName))
	if err != nil || strings.TrimSpace(output) != "active" {
		return fmt.Errorf("service is not active")
	}

	fmt.Println("  ✓ Service is running")
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/banshee-data/camerad/internal/camera"
	"github.com/banshee-data/camerad/internal/config"
	"github.com/banshee-data/camerad/internal/deploy"
)

// Installer handles installation of the camerad service
type Installer struct {
	Target        string
	SSHUser       string
	SSHKey        string
	IdentityAgent string
	BinaryPath    string
	DBPath        string
	FrameID       string
	CalibURL      string
	DryRun        bool
}

const (
	serviceName = "camerad"
	installPath = "/usr/local/bin/camerad"
	dataDir     = "/var/lib/camerad"
	dbPath      = "/var/lib/camerad/calibration.db"
	backupsDir  = "/var/lib/camerad/backups"
	configDir   = "/etc/camerad"
	configPath  = "/etc/camerad/config.json"
	serviceFile = "camerad.service"
	servicePath = "/etc/systemd/system/camerad.service"
	serviceUser = "camerad"

	serviceContent = `[Unit]
Description=Camera acquisition and control daemon
After=network-online.target
Wants=network-online.target

[Service]
User=camerad
Group=camerad
Type=simple
ExecStart=/usr/local/bin/camerad -config /etc/camerad/config.json
WorkingDirectory=/var/lib/camerad
Restart=on-failure
RestartSec=5
StandardOutput=journal
StandardError=journal
SyslogIdentifier=camerad

[Install]
WantedBy=multi-user.target
`
)

// Install performs the installation
func (i *Installer) Install() error {
	exec := newExecutor(i.Target, i.SSHUser, i.SSHKey, i.IdentityAgent, i.DryRun)

	fmt.Println("Starting installation of camerad...")

	// Step 1: Validate binary exists
	if err := i.validateBinary(); err != nil {
		return fmt.Errorf("binary validation failed: %w", err)
	}

	// Step 2: Check if already installed
	if installed, err := i.checkExisting(exec); err != nil {
		return fmt.Errorf("failed to check existing installation: %w", err)
	} else if installed {
		fmt.Println("camerad is already installed. Use 'upgrade' command to update.")
		return nil
	}

	// Step 3: Create service user
	if err := i.createServiceUser(exec); err != nil {
		return fmt.Errorf("failed to create service user: %w", err)
	}

	// Step 4: Create data and config directories
	if err := i.createDirectories(exec); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	// Step 5: Install binary
	if err := i.installBinary(exec); err != nil {
		return fmt.Errorf("failed to install binary: %w", err)
	}

	// Step 6: Write default daemon configuration
	if err := i.writeDefaultConfig(exec); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	// Step 7: Install systemd service
	if err := i.installService(exec); err != nil {
		return fmt.Errorf("failed to install service: %w", err)
	}

	// Step 8: Migrate calibration database if provided
	if i.DBPath != "" {
		if err := i.migrateDatabase(exec); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// Step 9: Start service
	if err := i.startService(exec); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	fmt.Println("\n✓ Installation completed successfully!")
	fmt.Println("\nUseful commands:")
	fmt.Println("  Check status:  camerad-deploy status")
	fmt.Println("  Health check:  camerad-deploy health")
	fmt.Println("  View logs:     sudo journalctl -u camerad.service -f")

	return nil
}

func (i *Installer) validateBinary() error {
	fmt.Printf("Validating binary: %s\n", i.BinaryPath)

	info, err := os.Stat(i.BinaryPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("binary not found: %s", i.BinaryPath)
	}
	if err != nil {
		return err
	}

	if info.Mode()&0111 == 0 {
		return fmt.Errorf("binary is not executable: %s", i.BinaryPath)
	}

	fmt.Println("  ✓ Binary validated")
	return nil
}

func (i *Installer) checkExisting(exec *deploy.Executor) (bool, error) {
	fmt.Println("Checking for existing installation...")

	output, err := exec.Run(fmt.Sprintf("test -f %s && echo 'exists' || echo 'not found'", servicePath))
	if err != nil {
		return false, err
	}

	if strings.TrimSpace(output) == "exists" {
		return true, nil
	}

	fmt.Println("  ✓ No existing installation found")
	return false, nil
}

func (i *Installer) createServiceUser(exec *deploy.Executor) error {
	fmt.Printf("Creating service user '%s'...\n", serviceUser)

	output, err := exec.Run(fmt.Sprintf("id %s 2>/dev/null && echo 'exists' || echo 'not found'", serviceUser))
	if err != nil {
		return err
	}

	if strings.TrimSpace(output) == "exists" {
		fmt.Printf("  ✓ User '%s' already exists\n", serviceUser)
		return nil
	}

	_, err = exec.RunSudo(fmt.Sprintf("useradd --system --no-create-home --shell /usr/sbin/nologin %s", serviceUser))
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("  ✓ User '%s' created\n", serviceUser)
	return nil
}

func (i *Installer) createDirectories(exec *deploy.Executor) error {
	fmt.Printf("Creating data directory: %s\n", dataDir)

	_, err := exec.RunSudo(fmt.Sprintf("mkdir -p %s && chown %s:%s %s", dataDir, serviceUser, serviceUser, dataDir))
	if err != nil {
		return err
	}

	_, err = exec.RunSudo(fmt.Sprintf("mkdir -p %s", configDir))
	if err != nil {
		return err
	}

	fmt.Printf("  ✓ Directories created\n")
	return nil
}

func (i *Installer) installBinary(exec *deploy.Executor) error {
	fmt.Printf("Installing binary to %s...\n", installPath)

	if err := exec.CopyFile(i.BinaryPath, installPath); err != nil {
		return fmt.Errorf("failed to copy binary: %w", err)
	}

	_, err := exec.RunSudo(fmt.Sprintf("chown root:root %s && chmod 0755 %s", installPath, installPath))
	if err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	fmt.Println("  ✓ Binary installed")
	return nil
}

// defaultConfig renders the daemon configuration the installer deploys. The
// daemon ships without a hardware driver, so installs start in dev mode with
// the synthetic camera until a driver build replaces the binary.
func (i *Installer) defaultConfig() (string, error) {
	devMode := true
	listen := ":8080"
	calibDB := dbPath

	cfg := &config.DaemonConfig{
		Listen:        &listen,
		DevMode:       &devMode,
		CalibrationDB: &calibDB,
	}
	cfg.Camera.FrameID = i.FrameID
	if cfg.Camera.FrameID == "" {
		cfg.Camera.FrameID = camera.DefaultFrameID
	}
	cfg.Camera.CalibrationURL = i.CalibURL

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

func (i *Installer) writeDefaultConfig(exec *deploy.Executor) error {
	fmt.Printf("Writing daemon configuration to %s...\n", configPath)

	output, err := exec.Run(fmt.Sprintf("test -f %s && echo 'exists' || echo 'not found'", configPath))
	if err != nil {
		return err
	}
	if strings.TrimSpace(output) == "exists" {
		fmt.Println("  ⊘ Configuration already present, leaving it unchanged")
		return nil
	}

	content, err := i.defaultConfig()
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	tempFile := "/tmp/camerad-config.json"
	if err := exec.WriteFile(tempFile, content); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	_, err = exec.RunSudo(fmt.Sprintf("mv %s %s && chown root:root %s && chmod 0644 %s", tempFile, configPath, configPath, configPath))
	if err != nil {
		return fmt.Errorf("failed to install config file: %w", err)
	}

	fmt.Println("  ✓ Configuration written")
	return nil
}

func (i *Installer) installService(exec *deploy.Executor) error {
	fmt.Println("Installing systemd service...")

	tempFile := "/tmp/camerad.service"
	if err := exec.WriteFile(tempFile, serviceContent); err != nil {
		return fmt.Errorf("failed to write service file: %w", err)
	}

	_, err := exec.RunSudo(fmt.Sprintf("mv %s %s", tempFile, servicePath))
	if err != nil {
		return fmt.Errorf("failed to install service file: %w", err)
	}

	_, err = exec.RunSudo("systemctl daemon-reload")
	if err != nil {
		return fmt.Errorf("failed to reload systemd: %w", err)
	}

	_, err = exec.RunSudo(fmt.Sprintf("systemctl enable %s", serviceName))
	if err != nil {
		return fmt.Errorf("failed to enable service: %w", err)
	}

	fmt.Println("  ✓ Service installed and enabled")
	return nil
}

func (i *Installer) migrateDatabase(exec *deploy.Executor) error {
	fmt.Printf("Migrating calibration database from: %s\n", i.DBPath)

	if err := exec.CopyFile(i.DBPath, dbPath); err != nil {
		return fmt.Errorf("failed to copy database: %w", err)
	}

	_, err := exec.RunSudo(fmt.Sprintf("chown %s:%s %s", serviceUser, serviceUser, dbPath))
	if err != nil {
		return fmt.Errorf("failed to set database ownership: %w", err)
	}

	fmt.Println("  ✓ Database migrated")
	return nil
}

func (i *Installer) startService(exec *deploy.Executor) error {
	fmt.Printf("Starting %s service...\n", serviceName)

	_, err := exec.RunSudo(fmt.Sprintf("systemctl start %s", serviceName))
	if err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	// Give the daemon a moment to come up before probing.
	exec.Run("sleep 2")

	output, err := exec.RunSudo(fmt.Sprintf("systemctl is-active %s", serviceName))
	if err != nil || strings.TrimSpace(output) != "active" {
		return fmt.Errorf("service failed to start properly")
	}

	fmt.Println("  ✓ Service started successfully")
	return nil
}

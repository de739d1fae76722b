package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/camerad/internal/deploy"
	"github.com/banshee-data/camerad/internal/security"
)

// Backup creates a backup of a camerad deployment
type Backup struct {
	Target        string
	SSHUser       string
	SSHKey        string
	IdentityAgent string
	OutputDir     string
}

// Execute performs the backup. Files are pulled from the target and stored
// in a timestamped directory under OutputDir on this machine.
func (b *Backup) Execute() error {
	exec := newExecutor(b.Target, b.SSHUser, b.SSHKey, b.IdentityAgent, false)

	fmt.Println("Starting backup of camerad...")

	hostLabel := b.Target
	if exec.IsLocal() {
		hostLabel = "local"
	}

	timestamp := time.Now().Format("20060102-150405")
	backupName := fmt.Sprintf("camerad-backup-%s-%s", security.SanitizeFilename(hostLabel), timestamp)
	localDir := filepath.Join(b.OutputDir, backupName)

	if err := security.ValidateExportPath(localDir); err != nil {
		return fmt.Errorf("invalid output directory: %w", err)
	}

	if err := os.MkdirAll(localDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	// Step 1: Backup binary
	if err := b.backupBinary(exec, localDir); err != nil {
		return fmt.Errorf("failed to backup binary: %w", err)
	}

	// Step 2: Backup calibration database
	if err := b.backupDatabase(exec, localDir); err != nil {
		fmt.Printf("Warning: could not backup database: %v\n", err)
	}

	// Step 3: Backup daemon config
	if err := b.backupConfig(exec, localDir); err != nil {
		fmt.Printf("Warning: could not backup config: %v\n", err)
	}

	// Step 4: Backup service unit
	if err := b.backupServiceFile(exec, localDir); err != nil {
		fmt.Printf("Warning: could not backup service file: %v\n", err)
	}

	// Step 5: Write restore instructions
	if err := b.createMetadata(localDir, hostLabel, timestamp); err != nil {
		fmt.Printf("Warning: could not write metadata: %v\n", err)
	}

	fmt.Printf("\n✓ Backup completed: %s\n", localDir)
	return nil
}

func (b *Backup) backupBinary(exec *deploy.Executor, localDir string) error {
	fmt.Println("Backing up binary...")

	if err := b.fetchFile(exec, installPath, filepath.Join(localDir, "camerad")); err != nil {
		return err
	}

	fmt.Println("  ✓ Binary backed up")
	return nil
}

func (b *Backup) backupDatabase(exec *deploy.Executor, localDir string) error {
	fmt.Println("Backing up calibration database...")

	if !b.targetFileExists(exec, dbPath) {
		fmt.Println("  ⊘ No database found, skipping")
		return nil
	}

	if err := b.fetchFile(exec, dbPath, filepath.Join(localDir, "calibration.db")); err != nil {
		return err
	}

	fmt.Println("  ✓ Database backed up")
	return nil
}

func (b *Backup) backupConfig(exec *deploy.Executor, localDir string) error {
	fmt.Println("Backing up configuration...")

	if !b.targetFileExists(exec, configPath) {
		fmt.Println("  ⊘ No configuration found, skipping")
		return nil
	}

	if err := b.fetchFile(exec, configPath, filepath.Join(localDir, "config.json")); err != nil {
		return err
	}

	fmt.Println("  ✓ Configuration backed up")
	return nil
}

func (b *Backup) backupServiceFile(exec *deploy.Executor, localDir string) error {
	fmt.Println("Backing up service unit...")

	if !b.targetFileExists(exec, servicePath) {
		fmt.Println("  ⊘ No service unit found, skipping")
		return nil
	}

	if err := b.fetchFile(exec, servicePath, filepath.Join(localDir, serviceFile)); err != nil {
		return err
	}

	fmt.Println("  ✓ Service unit backed up")
	return nil
}

func (b *Backup) createMetadata(localDir, hostLabel, timestamp string) error {
	readme := fmt.Sprintf(`camerad backup
Created: %s
Target: %s

Contents:
  camerad          daemon binary
  calibration.db   calibration store (if present)
  config.json      daemon configuration (if present)
  camerad.service  systemd unit (if present)

To restore on a target host:
  sudo systemctl stop camerad.service
  sudo cp camerad /usr/local/bin/camerad
  sudo cp calibration.db /var/lib/camerad/calibration.db
  sudo chown camerad:camerad /var/lib/camerad/calibration.db
  sudo cp config.json /etc/camerad/config.json
  sudo cp camerad.service /etc/systemd/system/camerad.service
  sudo systemctl daemon-reload
  sudo systemctl start camerad.service
`, timestamp, hostLabel)

	return os.WriteFile(filepath.Join(localDir, "README.txt"), []byte(readme), 0644)
}

func (b *Backup) targetFileExists(exec *deploy.Executor, path string) bool {
	output, err := exec.Run(fmt.Sprintf("test -f %s && echo 'exists' || echo 'not found'", path))
	return err == nil && strings.TrimSpace(output) == "exists"
}

// fetchFile copies a file from the target into the local backup directory.
// Remote files are staged in /tmp on the target so scp does not need root.
func (b *Backup) fetchFile(exec *deploy.Executor, targetPath, localPath string) error {
	if exec.IsLocal() {
		output, err := exec.RunSudo(fmt.Sprintf("cp %s %s && chmod 644 %s", targetPath, localPath, localPath))
		if err != nil {
			return fmt.Errorf("copy failed: %w (output: %s)", err, output)
		}
		return nil
	}

	tempPath := fmt.Sprintf("/tmp/camerad-backup-%s", filepath.Base(localPath))
	output, err := exec.RunSudo(fmt.Sprintf("cp %s %s && chmod 644 %s", targetPath, tempPath, tempPath))
	if err != nil {
		return fmt.Errorf("staging failed: %w (output: %s)", err, output)
	}

	if err := exec.PullFile(tempPath, localPath); err != nil {
		return err
	}

	exec.Run(fmt.Sprintf("rm -f %s", tempPath))
	return nil
}

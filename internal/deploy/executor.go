// Package deploy runs commands on local or remote camera hosts for the
// deployment tooling.
package deploy

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Logger is the debug logging interface the executor reports through.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// nopLogger discards all debug output.
type nopLogger struct{}

func (n nopLogger) Debugf(format string, args ...interface{}) {}

// Executor runs commands on a deployment target. An empty target, "localhost"
// or "127.0.0.1" executes directly; anything else goes over ssh.
type Executor struct {
	Target        string
	SSHUser       string
	SSHKey        string
	IdentityAgent string
	DryRun        bool
	Logger        Logger

	builder CommandBuilder
}

// NewExecutor creates an executor for the target host.
func NewExecutor(target, sshUser, sshKey, identityAgent string, dryRun bool) *Executor {
	return &Executor{
		Target:        target,
		SSHUser:       sshUser,
		SSHKey:        sshKey,
		IdentityAgent: identityAgent,
		DryRun:        dryRun,
		Logger:        nopLogger{},
		builder:       NewRealCommandBuilder(),
	}
}

// SetLogger sets the debug logger for the executor.
func (e *Executor) SetLogger(logger Logger) {
	if logger != nil {
		e.Logger = logger
	}
}

// SetBuilder replaces the command builder. Tests use it to substitute a
// MockCommandBuilder.
func (e *Executor) SetBuilder(builder CommandBuilder) {
	if builder != nil {
		e.builder = builder
	}
}

// IsLocal returns true if the target is the local machine.
func (e *Executor) IsLocal() bool {
	return e.Target == "localhost" || e.Target == "127.0.0.1" || e.Target == ""
}

// Run executes a command on the target.
func (e *Executor) Run(command string) (string, error) {
	if e.DryRun {
		return fmt.Sprintf("[DRY-RUN] Would execute: %s", command), nil
	}

	e.Logger.Debugf("Executing: %s (target=%s, local=%v)", command, e.Target, e.IsLocal())

	if e.IsLocal() {
		output, err := e.runLocal(command)
		if err != nil {
			e.Logger.Debugf("Command failed: %v, output: %s", err, output)
		}
		return output, err
	}
	output, err := e.runSSH(command)
	if err != nil {
		e.Logger.Debugf("SSH command failed: %v, output: %s", err, output)
	}
	return output, err
}

// RunSudo executes a command on the target with sudo.
func (e *Executor) RunSudo(command string) (string, error) {
	if e.DryRun {
		return fmt.Sprintf("[DRY-RUN] Would execute (sudo): %s", command), nil
	}

	sudoCmd := fmt.Sprintf("sudo %s", command)
	e.Logger.Debugf("Executing (sudo): %s (target=%s, local=%v)", command, e.Target, e.IsLocal())

	if e.IsLocal() {
		output, err := e.runLocal(sudoCmd)
		if err != nil {
			e.Logger.Debugf("Sudo command failed: %v, output: %s", err, output)
		}
		return output, err
	}
	output, err := e.runSSH(sudoCmd)
	if err != nil {
		e.Logger.Debugf("SSH sudo command failed: %v, output: %s", err, output)
	}
	return output, err
}

// CopyFile copies a local file to the target.
func (e *Executor) CopyFile(src, dst string) error {
	if e.DryRun {
		return nil
	}

	e.Logger.Debugf("Copying file: %s -> %s (target=%s, local=%v)", src, dst, e.Target, e.IsLocal())

	var err error
	if e.IsLocal() {
		err = e.copyLocal(src, dst)
	} else {
		err = e.copySSH(src, dst)
	}

	if err != nil {
		e.Logger.Debugf("Copy failed: %v", err)
	}
	return err
}

// WriteFile writes content to a file on the target.
func (e *Executor) WriteFile(path, content string) error {
	if e.DryRun {
		return nil
	}

	if e.IsLocal() {
		return os.WriteFile(path, []byte(content), 0644)
	}

	executor := e.builder.BuildCommand("ssh", e.sshArgs(fmt.Sprintf("cat > %s", path))...)
	executor.SetStdin([]byte(content))
	if output, err := executor.Run(); err != nil {
		return fmt.Errorf("ssh write failed: %w, output: %s", err, output)
	}
	return nil
}

// PullFile copies a file from the target to the local machine.
func (e *Executor) PullFile(src, dst string) error {
	if e.DryRun {
		return nil
	}

	e.Logger.Debugf("Pulling file: %s -> %s (target=%s, local=%v)", src, dst, e.Target, e.IsLocal())

	if e.IsLocal() {
		return e.copyLocal(src, dst)
	}

	args := []string{}

	if e.SSHKey != "" {
		args = append(args, "-i", e.SSHKey)
	}

	args = append(args, "-o", "StrictHostKeyChecking=no")
	args = append(args, "-o", "UserKnownHostsFile=/dev/null")

	args = append(args, fmt.Sprintf("%s:%s", e.sshTarget(), src), dst)

	if output, err := e.builder.BuildCommand("scp", args...).Run(); err != nil {
		return fmt.Errorf("scp failed: %w, output: %s", err, output)
	}
	return nil
}

func (e *Executor) runLocal(command string) (string, error) {
	output, err := e.builder.BuildShellCommand(command).Run()
	return string(output), err
}

func (e *Executor) runSSH(command string) (string, error) {
	output, err := e.builder.BuildCommand("ssh", e.sshArgs(command)...).Run()
	return string(output), err
}

// sshArgs assembles the ssh argument list for running command on the target.
// Host key verification is disabled; targets are expected to be fleet hosts
// on a trusted network.
func (e *Executor) sshArgs(command string) []string {
	args := []string{}

	if e.SSHKey != "" {
		args = append(args, "-i", e.SSHKey)
	}

	if e.IdentityAgent != "" {
		args = append(args, "-o", fmt.Sprintf("IdentityAgent=%s", e.IdentityAgent))
	}

	args = append(args, "-o", "StrictHostKeyChecking=no")
	args = append(args, "-o", "UserKnownHostsFile=/dev/null")
	args = append(args, "-o", "LogLevel=ERROR")

	args = append(args, e.sshTarget(), command)
	return args
}

// sshTarget returns user@host unless the target already carries a user.
func (e *Executor) sshTarget() string {
	target := e.Target
	if e.SSHUser != "" && !strings.Contains(target, "@") {
		target = fmt.Sprintf("%s@%s", e.SSHUser, target)
	}
	return target
}

func (e *Executor) copyLocal(src, dst string) error {
	// System directories need sudo. /var/folders is the macOS per-user temp
	// tree and is writable directly.
	needsSudo := (strings.HasPrefix(dst, "/usr") ||
		strings.HasPrefix(dst, "/etc") ||
		(strings.HasPrefix(dst, "/var") && !strings.HasPrefix(dst, "/var/folders")))

	if needsSudo {
		if output, err := e.builder.BuildCommand("sudo", "cp", src, dst).Run(); err != nil {
			return fmt.Errorf("sudo cp failed: %w, output: %s", err, output)
		}
		return nil
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

// copySSH stages the file in /tmp on the target, then moves it into place
// with sudo when the destination is a system directory.
func (e *Executor) copySSH(src, dst string) error {
	args := []string{}

	if e.SSHKey != "" {
		args = append(args, "-i", e.SSHKey)
	}

	args = append(args, "-o", "StrictHostKeyChecking=no")
	args = append(args, "-o", "UserKnownHostsFile=/dev/null")

	tempPath := fmt.Sprintf("/tmp/camerad-copy-%d", time.Now().Unix())
	args = append(args, src, fmt.Sprintf("%s:%s", e.sshTarget(), tempPath))

	e.Logger.Debugf("SCP command: scp %v", args)
	if output, err := e.builder.BuildCommand("scp", args...).Run(); err != nil {
		return fmt.Errorf("scp failed: %w, output: %s", err, output)
	}

	if strings.HasPrefix(dst, "/usr") || strings.HasPrefix(dst, "/etc") || strings.HasPrefix(dst, "/var") {
		_, err := e.RunSudo(fmt.Sprintf("mv %s %s", tempPath, dst))
		return err
	}

	_, err := e.Run(fmt.Sprintf("mv %s %s", tempPath, dst))
	return err
}

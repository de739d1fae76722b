package deploy

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testLogger struct {
	logs []string
}

func (l *testLogger) Debugf(format string, args ...interface{}) {
	l.logs = append(l.logs, format)
}

func TestNewExecutor(t *testing.T) {
	e := NewExecutor("host.example.com", "user", "/path/to/key", "/path/to/agent", false)

	if e.Target != "host.example.com" {
		t.Errorf("Expected target host.example.com, got %s", e.Target)
	}
	if e.SSHUser != "user" {
		t.Errorf("Expected user, got %s", e.SSHUser)
	}
	if e.SSHKey != "/path/to/key" {
		t.Errorf("Expected /path/to/key, got %s", e.SSHKey)
	}
	if e.IdentityAgent != "/path/to/agent" {
		t.Errorf("Expected /path/to/agent, got %s", e.IdentityAgent)
	}
	if e.DryRun {
		t.Error("Expected DryRun false")
	}
	if e.builder == nil {
		t.Error("Expected a default command builder")
	}
}

func TestExecutor_IsLocal(t *testing.T) {
	tests := []struct {
		target   string
		expected bool
	}{
		{"localhost", true},
		{"127.0.0.1", true},
		{"", true},
		{"remote.example.com", false},
		{"192.168.1.100", false},
	}

	for _, tc := range tests {
		t.Run(tc.target, func(t *testing.T) {
			e := NewExecutor(tc.target, "", "", "", false)
			if e.IsLocal() != tc.expected {
				t.Errorf("IsLocal(%s) = %v, want %v", tc.target, e.IsLocal(), tc.expected)
			}
		})
	}
}

func TestExecutor_SetLogger(t *testing.T) {
	e := NewExecutor("localhost", "", "", "", false)
	logger := &testLogger{}
	e.SetLogger(logger)

	e.DryRun = true
	e.Run("echo test")

	// SetLogger with nil should not panic or clear the logger.
	e.SetLogger(nil)
	if e.Logger != logger {
		t.Error("Expected nil SetLogger to keep the existing logger")
	}
}

func TestExecutor_SetBuilder(t *testing.T) {
	e := NewExecutor("localhost", "", "", "", false)
	mock := NewMockCommandBuilder()
	e.SetBuilder(mock)

	e.Run("echo hi")
	if len(mock.Commands) != 1 {
		t.Fatalf("Expected 1 built command, got %d", len(mock.Commands))
	}

	// SetBuilder with nil should keep the current builder.
	e.SetBuilder(nil)
	e.Run("echo again")
	if len(mock.Commands) != 2 {
		t.Errorf("Expected builder to survive nil SetBuilder, got %d commands", len(mock.Commands))
	}
}

func TestExecutor_Run_DryRun(t *testing.T) {
	e := NewExecutor("localhost", "", "", "", true)
	output, err := e.Run("echo hello")

	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if !strings.Contains(output, "[DRY-RUN]") {
		t.Errorf("Expected dry-run output, got: %s", output)
	}
	if !strings.Contains(output, "echo hello") {
		t.Errorf("Expected command in output, got: %s", output)
	}
}

func TestExecutor_Run_Local(t *testing.T) {
	e := NewExecutor("localhost", "", "", "", false)
	output, err := e.Run("echo hello")

	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if strings.TrimSpace(output) != "hello" {
		t.Errorf("Expected 'hello', got: %s", output)
	}
}

func TestExecutor_Run_LocalError(t *testing.T) {
	e := NewExecutor("localhost", "", "", "", false)
	_, err := e.Run("exit 1")

	if err == nil {
		t.Error("Expected error for failed command")
	}
}

func TestExecutor_Run_LocalUsesShell(t *testing.T) {
	e := NewExecutor("localhost", "", "", "", false)
	mock := NewMockCommandBuilder()
	e.SetBuilder(mock)

	e.Run("systemctl status camerad")

	last := mock.LastCommand()
	if last == nil {
		t.Fatal("Expected a built command")
	}
	if !last.IsShell {
		t.Error("Expected local command to run through the shell")
	}
	if last.Args[1] != "systemctl status camerad" {
		t.Errorf("Expected shell command, got: %v", last.Args)
	}
}

func TestExecutor_Run_Remote(t *testing.T) {
	e := NewExecutor("cam1.example.com", "pi", "", "", false)
	mock := NewMockCommandBuilder()
	mock.SetNextExecutor(&MockCommandExecutor{Output: []byte("active")})
	e.SetBuilder(mock)

	output, err := e.Run("systemctl is-active camerad")
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if output != "active" {
		t.Errorf("Expected 'active', got: %s", output)
	}

	last := mock.LastCommand()
	if last == nil {
		t.Fatal("Expected a built command")
	}
	if last.Name != "ssh" {
		t.Errorf("Expected ssh command, got: %s", last.Name)
	}
	if last.Args[len(last.Args)-1] != "systemctl is-active camerad" {
		t.Errorf("Expected remote command last, got: %v", last.Args)
	}
	if last.Args[len(last.Args)-2] != "pi@cam1.example.com" {
		t.Errorf("Expected pi@cam1.example.com, got: %v", last.Args)
	}
}

func TestExecutor_Run_RemoteError(t *testing.T) {
	e := NewExecutor("cam1.example.com", "", "", "", false)
	logger := &testLogger{}
	e.SetLogger(logger)
	mock := NewMockCommandBuilder()
	mock.SetNextExecutor(&MockCommandExecutor{
		Output: []byte("connection refused"),
		Err:    errors.New("exit status 255"),
	})
	e.SetBuilder(mock)

	output, err := e.Run("true")
	if err == nil {
		t.Error("Expected error from failing ssh")
	}
	if output != "connection refused" {
		t.Errorf("Expected ssh output passed through, got: %s", output)
	}

	failureLogged := false
	for _, l := range logger.logs {
		if strings.Contains(l, "SSH command failed") {
			failureLogged = true
		}
	}
	if !failureLogged {
		t.Error("Expected failure to be logged")
	}
}

func TestExecutor_RunSudo_DryRun(t *testing.T) {
	e := NewExecutor("localhost", "", "", "", true)
	output, err := e.RunSudo("systemctl restart camerad")

	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if !strings.Contains(output, "[DRY-RUN]") {
		t.Errorf("Expected dry-run output, got: %s", output)
	}
	if !strings.Contains(output, "sudo") {
		t.Errorf("Expected sudo in output, got: %s", output)
	}
}

func TestExecutor_RunSudo_Remote(t *testing.T) {
	e := NewExecutor("cam1.example.com", "", "", "", false)
	mock := NewMockCommandBuilder()
	e.SetBuilder(mock)

	e.RunSudo("systemctl stop camerad")

	last := mock.LastCommand()
	if last == nil {
		t.Fatal("Expected a built command")
	}
	if last.Args[len(last.Args)-1] != "sudo systemctl stop camerad" {
		t.Errorf("Expected sudo prefix on remote command, got: %v", last.Args)
	}
}

func TestExecutor_CopyFile_DryRun(t *testing.T) {
	e := NewExecutor("localhost", "", "", "", true)
	if err := e.CopyFile("/source/file", "/dest/file"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestExecutor_CopyFile_Local(t *testing.T) {
	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "source.txt")
	dstPath := filepath.Join(tmpDir, "dest.txt")

	if err := os.WriteFile(srcPath, []byte("test content"), 0644); err != nil {
		t.Fatalf("Failed to create source file: %v", err)
	}

	e := NewExecutor("localhost", "", "", "", false)
	if err := e.CopyFile(srcPath, dstPath); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	content, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("Failed to read destination file: %v", err)
	}
	if string(content) != "test content" {
		t.Errorf("Expected 'test content', got: %s", string(content))
	}
}

func TestExecutor_CopyFile_LocalMissingSrc(t *testing.T) {
	tmpDir := t.TempDir()
	e := NewExecutor("localhost", "", "", "", false)
	err := e.CopyFile(filepath.Join(tmpDir, "nonexistent.txt"), filepath.Join(tmpDir, "dest.txt"))

	if err == nil {
		t.Error("Expected error for missing source file")
	}
}

func TestExecutor_CopyFile_RemoteSystemPath(t *testing.T) {
	e := NewExecutor("cam1.example.com", "pi", "/key", "", false)
	mock := NewMockCommandBuilder()
	e.SetBuilder(mock)

	if err := e.CopyFile("/tmp/camerad", "/usr/local/bin/camerad"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(mock.Commands) != 2 {
		t.Fatalf("Expected scp then mv, got %d commands: %v", len(mock.Commands), mock.Commands)
	}

	scp := mock.Commands[0]
	if scp.Name != "scp" {
		t.Errorf("Expected scp first, got: %s", scp.Name)
	}
	keyFound := false
	for i, arg := range scp.Args {
		if arg == "-i" && i+1 < len(scp.Args) && scp.Args[i+1] == "/key" {
			keyFound = true
		}
	}
	if !keyFound {
		t.Errorf("Expected -i /key in scp args: %v", scp.Args)
	}
	stagedToTmp := false
	for _, arg := range scp.Args {
		if strings.HasPrefix(arg, "pi@cam1.example.com:/tmp/camerad-copy-") {
			stagedToTmp = true
		}
	}
	if !stagedToTmp {
		t.Errorf("Expected staging path on target in scp args: %v", scp.Args)
	}

	mv := mock.Commands[1]
	if mv.Name != "ssh" {
		t.Errorf("Expected ssh move second, got: %s", mv.Name)
	}
	moveCmd := mv.Args[len(mv.Args)-1]
	if !strings.HasPrefix(moveCmd, "sudo mv /tmp/camerad-copy-") ||
		!strings.HasSuffix(moveCmd, " /usr/local/bin/camerad") {
		t.Errorf("Expected sudo mv into system path, got: %s", moveCmd)
	}
}

func TestExecutor_CopyFile_RemoteUserPath(t *testing.T) {
	e := NewExecutor("cam1.example.com", "", "", "", false)
	mock := NewMockCommandBuilder()
	e.SetBuilder(mock)

	if err := e.CopyFile("/tmp/notes.txt", "/home/pi/notes.txt"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(mock.Commands) != 2 {
		t.Fatalf("Expected scp then mv, got %d commands", len(mock.Commands))
	}
	moveCmd := mock.Commands[1].Args[len(mock.Commands[1].Args)-1]
	if strings.HasPrefix(moveCmd, "sudo ") {
		t.Errorf("Expected plain mv for user path, got: %s", moveCmd)
	}
}

func TestExecutor_CopyFile_RemoteScpFailed(t *testing.T) {
	e := NewExecutor("cam1.example.com", "", "", "", false)
	mock := NewMockCommandBuilder()
	mock.SetNextExecutor(&MockCommandExecutor{Err: errors.New("exit status 1")})
	e.SetBuilder(mock)

	err := e.CopyFile("/tmp/camerad", "/usr/local/bin/camerad")
	if err == nil {
		t.Fatal("Expected error when scp fails")
	}
	if !strings.Contains(err.Error(), "scp failed") {
		t.Errorf("Expected scp failure error, got: %v", err)
	}
	if len(mock.Commands) != 1 {
		t.Errorf("Expected no move after failed scp, got %d commands", len(mock.Commands))
	}
}

func TestExecutor_WriteFile_DryRun(t *testing.T) {
	e := NewExecutor("localhost", "", "", "", true)
	if err := e.WriteFile("/tmp/test.txt", "content"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestExecutor_PullFile_DryRun(t *testing.T) {
	e := NewExecutor("cam1.example.com", "pi", "", "", true)
	if err := e.PullFile("/var/lib/camerad/calibration.db", "/tmp/calibration.db"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestExecutor_PullFile_Local(t *testing.T) {
	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "src.db")
	dstPath := filepath.Join(tmpDir, "dst.db")

	if err := os.WriteFile(srcPath, []byte("calibration data"), 0644); err != nil {
		t.Fatalf("Failed to create source file: %v", err)
	}

	e := NewExecutor("localhost", "", "", "", false)
	if err := e.PullFile(srcPath, dstPath); err != nil {
		t.Fatalf("PullFile failed: %v", err)
	}

	content, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("Failed to read destination: %v", err)
	}
	if string(content) != "calibration data" {
		t.Errorf("Destination content = %q, want %q", string(content), "calibration data")
	}
}

func TestExecutor_PullFile_Remote(t *testing.T) {
	mock := NewMockCommandBuilder()

	e := NewExecutor("cam1.example.com", "pi", "/key", "", false)
	e.SetBuilder(mock)

	if err := e.PullFile("/tmp/camerad-pull-1.db", "/backups/calibration.db"); err != nil {
		t.Fatalf("PullFile failed: %v", err)
	}

	if len(mock.Commands) != 1 {
		t.Fatalf("Expected 1 command, got %d", len(mock.Commands))
	}

	cmd := mock.Commands[0]
	if cmd.Name != "scp" {
		t.Errorf("Command name = %q, want scp", cmd.Name)
	}

	args := strings.Join(cmd.Args, " ")
	if !strings.Contains(args, "-i /key") {
		t.Errorf("scp args missing key: %v", cmd.Args)
	}
	if !strings.Contains(args, "pi@cam1.example.com:/tmp/camerad-pull-1.db") {
		t.Errorf("scp args missing remote source: %v", cmd.Args)
	}
	if cmd.Args[len(cmd.Args)-1] != "/backups/calibration.db" {
		t.Errorf("scp last arg = %q, want local destination", cmd.Args[len(cmd.Args)-1])
	}
}

func TestExecutor_PullFile_RemoteScpFailed(t *testing.T) {
	mock := NewMockCommandBuilder()
	mock.SetNextExecutor(&MockCommandExecutor{
		Output: []byte("connection refused"),
		Err:    errors.New("exit status 1"),
	})

	e := NewExecutor("cam1.example.com", "pi", "", "", false)
	e.SetBuilder(mock)

	err := e.PullFile("/tmp/src.db", "/backups/dst.db")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "scp failed") {
		t.Errorf("Error = %v, want scp failed", err)
	}
}

func TestExecutor_WriteFile_Local(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "test.txt")

	e := NewExecutor("localhost", "", "", "", false)
	if err := e.WriteFile(filePath, "test content"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != "test content" {
		t.Errorf("Expected 'test content', got: %s", string(content))
	}
}

func TestExecutor_WriteFile_Remote(t *testing.T) {
	e := NewExecutor("cam1.example.com", "pi", "", "", false)
	mock := NewMockCommandBuilder()
	captured := &MockCommandExecutor{}
	mock.SetNextExecutor(captured)
	e.SetBuilder(mock)

	content := "{\"listen\": \":8080\"}\n"
	if err := e.WriteFile("/etc/camerad/config.json", content); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	last := mock.LastCommand()
	if last == nil || last.Name != "ssh" {
		t.Fatalf("Expected ssh command, got: %+v", last)
	}
	if last.Args[len(last.Args)-1] != "cat > /etc/camerad/config.json" {
		t.Errorf("Expected remote cat redirection, got: %v", last.Args)
	}
	if string(captured.Stdin) != content {
		t.Errorf("Expected content on stdin, got: %s", captured.Stdin)
	}
}

func TestExecutor_WriteFile_RemoteError(t *testing.T) {
	e := NewExecutor("cam1.example.com", "", "", "", false)
	mock := NewMockCommandBuilder()
	mock.SetNextExecutor(&MockCommandExecutor{
		Output: []byte("permission denied"),
		Err:    errors.New("exit status 1"),
	})
	e.SetBuilder(mock)

	err := e.WriteFile("/etc/camerad/config.json", "x")
	if err == nil {
		t.Fatal("Expected error when remote write fails")
	}
	if !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("Expected remote output in error, got: %v", err)
	}
}

func TestExecutor_sshArgs(t *testing.T) {
	e := NewExecutor("remote.example.com", "testuser", "/path/to/key", "/path/to/agent", false)
	args := e.sshArgs("echo hello")

	keyFound := false
	for i, arg := range args {
		if arg == "-i" && i+1 < len(args) && args[i+1] == "/path/to/key" {
			keyFound = true
			break
		}
	}
	if !keyFound {
		t.Errorf("Expected -i /path/to/key in args: %v", args)
	}

	agentFound := false
	for _, arg := range args {
		if strings.Contains(arg, "IdentityAgent=/path/to/agent") {
			agentFound = true
			break
		}
	}
	if !agentFound {
		t.Errorf("Expected IdentityAgent=/path/to/agent in args: %v", args)
	}

	hostKeyOff := false
	for _, arg := range args {
		if arg == "StrictHostKeyChecking=no" {
			hostKeyOff = true
			break
		}
	}
	if !hostKeyOff {
		t.Errorf("Expected StrictHostKeyChecking=no in args: %v", args)
	}

	if args[len(args)-2] != "testuser@remote.example.com" {
		t.Errorf("Expected testuser@remote.example.com before command: %v", args)
	}
	if args[len(args)-1] != "echo hello" {
		t.Errorf("Expected command last: %v", args)
	}
}

func TestExecutor_sshArgs_NoUser(t *testing.T) {
	e := NewExecutor("remote.example.com", "", "", "", false)
	args := e.sshArgs("echo hello")

	if args[len(args)-2] != "remote.example.com" {
		t.Errorf("Expected bare target without user: %v", args)
	}
}

func TestExecutor_sshArgs_TargetWithAt(t *testing.T) {
	e := NewExecutor("existing@remote.example.com", "ignored", "", "", false)
	args := e.sshArgs("echo hello")

	if args[len(args)-2] != "existing@remote.example.com" {
		t.Errorf("Expected target's own user kept: %v", args)
	}
}

func TestLogger_NopLogger(t *testing.T) {
	logger := nopLogger{}
	logger.Debugf("test %s", "message")
}

package deploy

import (
	"bytes"
	"os/exec"
)

// CommandExecutor runs one prepared command.
type CommandExecutor interface {
	// Run executes the command and returns combined stdout and stderr.
	Run() ([]byte, error)

	// SetStdin supplies the command's standard input.
	SetStdin(stdin []byte)
}

// CommandBuilder constructs the commands an Executor runs. Tests install a
// MockCommandBuilder to capture the exact ssh and scp invocations without
// touching a shell.
type CommandBuilder interface {
	// BuildCommand prepares a direct invocation of name with args.
	BuildCommand(name string, args ...string) CommandExecutor

	// BuildShellCommand prepares an invocation of command through sh -c.
	BuildShellCommand(command string) CommandExecutor
}

// RealCommandExecutor wraps exec.Cmd.
type RealCommandExecutor struct {
	cmd *exec.Cmd
}

// Run executes the command and returns combined output.
func (r *RealCommandExecutor) Run() ([]byte, error) {
	return r.cmd.CombinedOutput()
}

// SetStdin sets stdin for the command.
func (r *RealCommandExecutor) SetStdin(stdin []byte) {
	r.cmd.Stdin = bytes.NewReader(stdin)
}

// RealCommandBuilder builds commands with exec.Command.
type RealCommandBuilder struct{}

// NewRealCommandBuilder creates a RealCommandBuilder.
func NewRealCommandBuilder() *RealCommandBuilder {
	return &RealCommandBuilder{}
}

// BuildCommand prepares a direct invocation of name with args.
func (b *RealCommandBuilder) BuildCommand(name string, args ...string) CommandExecutor {
	return &RealCommandExecutor{cmd: exec.Command(name, args...)}
}

// BuildShellCommand prepares a shell invocation of command.
func (b *RealCommandBuilder) BuildShellCommand(command string) CommandExecutor {
	return &RealCommandExecutor{cmd: exec.Command("sh", "-c", command)}
}

// MockCommandExecutor implements CommandExecutor for tests.
type MockCommandExecutor struct {
	// Output is returned from Run.
	Output []byte
	// Err is returned from Run.
	Err error
	// Stdin records the data passed to SetStdin.
	Stdin []byte
	// RunCalled reports whether Run was invoked.
	RunCalled bool
}

// Run returns the configured output and error.
func (m *MockCommandExecutor) Run() ([]byte, error) {
	m.RunCalled = true
	return m.Output, m.Err
}

// SetStdin records the stdin data.
func (m *MockCommandExecutor) SetStdin(stdin []byte) {
	m.Stdin = stdin
}

// MockCommandBuilder implements CommandBuilder for tests. It records every
// command built and hands back canned executors.
type MockCommandBuilder struct {
	// Commands records all commands that were built, in order.
	Commands []MockBuiltCommand
	// NextExecutor is returned by the next Build call. If nil, a default
	// MockCommandExecutor is created.
	NextExecutor *MockCommandExecutor
	// ExecutorFactory, when set, creates executors per command. It takes
	// precedence over NextExecutor.
	ExecutorFactory func(name string, args []string) *MockCommandExecutor
}

// MockBuiltCommand records one built command.
type MockBuiltCommand struct {
	Name    string
	Args    []string
	IsShell bool
}

// NewMockCommandBuilder creates a MockCommandBuilder.
func NewMockCommandBuilder() *MockCommandBuilder {
	return &MockCommandBuilder{}
}

// BuildCommand records the command and returns a mock executor.
func (b *MockCommandBuilder) BuildCommand(name string, args ...string) CommandExecutor {
	b.Commands = append(b.Commands, MockBuiltCommand{
		Name:    name,
		Args:    args,
		IsShell: false,
	})
	return b.getExecutor(name, args)
}

// BuildShellCommand records the shell command and returns a mock executor.
func (b *MockCommandBuilder) BuildShellCommand(command string) CommandExecutor {
	b.Commands = append(b.Commands, MockBuiltCommand{
		Name:    "sh",
		Args:    []string{"-c", command},
		IsShell: true,
	})
	return b.getExecutor("sh", []string{"-c", command})
}

func (b *MockCommandBuilder) getExecutor(name string, args []string) *MockCommandExecutor {
	if b.ExecutorFactory != nil {
		return b.ExecutorFactory(name, args)
	}
	if b.NextExecutor != nil {
		executor := b.NextExecutor
		b.NextExecutor = nil
		return executor
	}
	return &MockCommandExecutor{}
}

// SetNextExecutor sets the executor returned by the next Build call.
func (b *MockCommandBuilder) SetNextExecutor(executor *MockCommandExecutor) {
	b.NextExecutor = executor
}

// LastCommand returns the most recently built command, or nil if none.
func (b *MockCommandBuilder) LastCommand() *MockBuiltCommand {
	if len(b.Commands) == 0 {
		return nil
	}
	return &b.Commands[len(b.Commands)-1]
}

// Reset clears recorded commands and any pending executor.
func (b *MockCommandBuilder) Reset() {
	b.Commands = nil
	b.NextExecutor = nil
}

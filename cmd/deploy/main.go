package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/banshee-data/camerad/internal/deploy"
	"github.com/banshee-data/camerad/internal/monitoring"
)

const version = "0.2.0"

var DebugMode bool

// debugLogger feeds executor debug output through the shared diagnostic
// logger, which stays quiet unless --debug enabled it.
type debugLogger struct{}

func (debugLogger) Debugf(format string, args ...interface{}) {
	monitoring.Debugf(format, args...)
}

func debugLog(format string, args ...interface{}) {
	monitoring.Debugf(format, args...)
}

func newExecutor(target, sshUser, sshKey, identityAgent string, dryRun bool) *deploy.Executor {
	exec := deploy.NewExecutor(target, sshUser, sshKey, identityAgent, dryRun)
	exec.SetLogger(debugLogger{})
	return exec
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "install":
		handleInstall(args)
	case "upgrade":
		handleUpgrade(args)
	case "status":
		handleStatus(args)
	case "health":
		handleHealth(args)
	case "rollback":
		handleRollback(args)
	case "backup":
		handleBackup(args)
	case "config":
		handleConfig(args)
	case "version":
		fmt.Printf("camerad-deploy version %s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`camerad-deploy - Deployment manager for camerad camera hosts

Usage: camerad-deploy <command> [options]

Commands:
  install    Install the camerad service on a host
  upgrade    Upgrade camerad to a newer version
  status     Show service and camera status
  health     Perform health check on a running service
  rollback   Rollback to the previous version
  backup     Pull the calibration database and configuration
  config     Show or push daemon configuration
  version    Show camerad-deploy version
  help       Show this help message

Common Flags:
  --target <host>      Target host (default: localhost)
                       Can be a hostname, IP, or SSH config host alias
  --ssh-user <user>    SSH user for remote deployment
                       Defaults to ~/.ssh/config or current user
  --ssh-key <path>     SSH private key path
                       Defaults to ~/.ssh/config
  --dry-run            Show what would be done without executing
  --debug              Enable debug logging

SSH Config Support:
  camerad-deploy reads ~/.ssh/config for host configuration. If a host is
  defined there, the tool will use:
    - HostName (IP or domain)
    - User
    - IdentityFile (SSH key)

  Command-line flags override SSH config values.

Examples:
  # Install locally
  camerad-deploy install --binary ./camerad-linux-arm64

  # Install on a fleet host using an SSH config alias
  camerad-deploy install --target cam-gate --binary ./camerad-linux-arm64 --frame-id gate

  # Install on a remote host with explicit credentials
  camerad-deploy install --target pi@192.168.1.50 --ssh-key ~/.ssh/id_rsa --binary ./camerad-linux-arm64

  # Check status using SSH config
  camerad-deploy status --target cam-gate

  # Upgrade a host
  camerad-deploy upgrade --target cam-gate --binary ./camerad-linux-arm64

  # Push a new daemon configuration
  camerad-deploy config --target cam-gate --push ./config.json`)
}

func handleInstall(args []string) {
	fs := flag.NewFlagSet("install", flag.ExitOnError)
	target := fs.String("target", "localhost", "Target host for installation")
	sshUser := fs.String("ssh-user", "", "SSH user (defaults to ~/.ssh/config or current user)")
	sshKey := fs.String("ssh-key", "", "SSH private key path (defaults to ~/.ssh/config)")
	binaryPath := fs.String("binary", "", "Path to camerad binary (required)")
	dbPath := fs.String("db-path", "", "Path to an existing calibration database to migrate")
	frameID := fs.String("frame-id", "", "Camera frame identifier written into the default config")
	calibURL := fs.String("calib-url", "", "Calibration document URL written into the default config")
	dryRun := fs.Bool("dry-run", false, "Show what would be done")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	DebugMode = *debug
	monitoring.SetDebug(*debug)

	if *binaryPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --binary flag is required. Specify the path to the camerad binary (e.g., --binary ./camerad-linux-arm64)")
		fs.Usage()
		os.Exit(1)
	}

	resolvedHost, resolvedUser, resolvedKey, identityAgent, err := deploy.ResolveSSHTarget(*target, *sshUser, *sshKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve SSH config: %v\n", err)
		os.Exit(1)
	}
	if resolvedUser == "" {
		resolvedUser = os.Getenv("USER")
	}

	installer := &Installer{
		Target:        resolvedHost,
		SSHUser:       resolvedUser,
		SSHKey:        resolvedKey,
		IdentityAgent: identityAgent,
		BinaryPath:    *binaryPath,
		DBPath:        *dbPath,
		FrameID:       *frameID,
		CalibURL:      *calibURL,
		DryRun:        *dryRun,
	}

	if err := installer.Install(); err != nil {
		fmt.Fprintf(os.Stderr, "Installation failed: %v\n", err)
		os.Exit(1)
	}
}

func handleUpgrade(args []string) {
	fs := flag.NewFlagSet("upgrade", flag.ExitOnError)
	target := fs.String("target", "localhost", "Target host")
	sshUser := fs.String("ssh-user", "", "SSH user (defaults to ~/.ssh/config or current user)")
	sshKey := fs.String("ssh-key", "", "SSH private key path (defaults to ~/.ssh/config)")
	binaryPath := fs.String("binary", "", "Path to new camerad binary (required)")
	dryRun := fs.Bool("dry-run", false, "Show what would be done")
	noBackup := fs.Bool("no-backup", false, "Skip backup before upgrade")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	DebugMode = *debug
	monitoring.SetDebug(*debug)

	if *binaryPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --binary flag is required. Specify the path to the camerad binary (e.g., --binary ./camerad-linux-arm64)")
		fs.Usage()
		os.Exit(1)
	}

	resolvedHost, resolvedUser, resolvedKey, identityAgent, err := deploy.ResolveSSHTarget(*target, *sshUser, *sshKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve SSH config: %v\n", err)
		os.Exit(1)
	}
	if resolvedUser == "" {
		resolvedUser = os.Getenv("USER")
	}

	upgrader := &Upgrader{
		Target:        resolvedHost,
		SSHUser:       resolvedUser,
		SSHKey:        resolvedKey,
		IdentityAgent: identityAgent,
		BinaryPath:    *binaryPath,
		DryRun:        *dryRun,
		NoBackup:      *noBackup,
	}

	if err := upgrader.Upgrade(); err != nil {
		fmt.Fprintf(os.Stderr, "Upgrade failed: %v\n", err)
		os.Exit(1)
	}
}

func handleStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	target := fs.String("target", "localhost", "Target host")
	sshUser := fs.String("ssh-user", "", "SSH user (defaults to ~/.ssh/config or current user)")
	sshKey := fs.String("ssh-key", "", "SSH private key path (defaults to ~/.ssh/config)")
	apiPort := fs.Int("api-port", 8080, "Daemon API port")
	timeout := fs.Int("timeout", 30, "Timeout in seconds")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	DebugMode = *debug
	monitoring.SetDebug(*debug)

	resolvedHost, resolvedUser, resolvedKey, identityAgent, err := deploy.ResolveSSHTarget(*target, *sshUser, *sshKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve SSH config: %v\n", err)
		os.Exit(1)
	}
	if resolvedUser == "" {
		resolvedUser = os.Getenv("USER")
	}

	monitor := &Monitor{
		Target:        resolvedHost,
		SSHUser:       resolvedUser,
		SSHKey:        resolvedKey,
		IdentityAgent: identityAgent,
		APIPort:       *apiPort,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
	defer cancel()

	status, err := monitor.GetStatus(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get status: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(status.FormatStatus())
}

func handleHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	target := fs.String("target", "localhost", "Target host")
	sshUser := fs.String("ssh-user", "", "SSH user (defaults to ~/.ssh/config or current user)")
	sshKey := fs.String("ssh-key", "", "SSH private key path (defaults to ~/.ssh/config)")
	apiPort := fs.Int("api-port", 8080, "Daemon API port")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	DebugMode = *debug
	monitoring.SetDebug(*debug)

	resolvedHost, resolvedUser, resolvedKey, identityAgent, err := deploy.ResolveSSHTarget(*target, *sshUser, *sshKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve SSH config: %v\n", err)
		os.Exit(1)
	}
	if resolvedUser == "" {
		resolvedUser = os.Getenv("USER")
	}

	monitor := &Monitor{
		Target:        resolvedHost,
		SSHUser:       resolvedUser,
		SSHKey:        resolvedKey,
		IdentityAgent: identityAgent,
		APIPort:       *apiPort,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	health, err := monitor.CheckHealth(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}

	if !health.Healthy {
		fmt.Printf("Service is UNHEALTHY: %s\n%s\n", health.Message, health.Details)
		os.Exit(1)
	}

	fmt.Printf("Service is HEALTHY\n%s\n", health.Details)
}

func handleRollback(args []string) {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	target := fs.String("target", "localhost", "Target host")
	sshUser := fs.String("ssh-user", "", "SSH user (defaults to ~/.ssh/config or current user)")
	sshKey := fs.String("ssh-key", "", "SSH private key path (defaults to ~/.ssh/config)")
	dryRun := fs.Bool("dry-run", false, "Show what would be done")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	DebugMode = *debug
	monitoring.SetDebug(*debug)

	resolvedHost, resolvedUser, resolvedKey, identityAgent, err := deploy.ResolveSSHTarget(*target, *sshUser, *sshKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve SSH config: %v\n", err)
		os.Exit(1)
	}
	if resolvedUser == "" {
		resolvedUser = os.Getenv("USER")
	}

	rollback := &Rollback{
		Target:        resolvedHost,
		SSHUser:       resolvedUser,
		SSHKey:        resolvedKey,
		IdentityAgent: identityAgent,
		DryRun:        *dryRun,
	}

	if err := rollback.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Rollback failed: %v\n", err)
		os.Exit(1)
	}
}

func handleBackup(args []string) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	target := fs.String("target", "localhost", "Target host")
	sshUser := fs.String("ssh-user", "", "SSH user (defaults to ~/.ssh/config or current user)")
	sshKey := fs.String("ssh-key", "", "SSH private key path (defaults to ~/.ssh/config)")
	outputDir := fs.String("output", ".", "Output directory for the backup")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	DebugMode = *debug
	monitoring.SetDebug(*debug)

	resolvedHost, resolvedUser, resolvedKey, identityAgent, err := deploy.ResolveSSHTarget(*target, *sshUser, *sshKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve SSH config: %v\n", err)
		os.Exit(1)
	}
	if resolvedUser == "" {
		resolvedUser = os.Getenv("USER")
	}

	backup := &Backup{
		Target:        resolvedHost,
		SSHUser:       resolvedUser,
		SSHKey:        resolvedKey,
		IdentityAgent: identityAgent,
		OutputDir:     *outputDir,
	}

	if err := backup.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Backup failed: %v\n", err)
		os.Exit(1)
	}
}

func handleConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	target := fs.String("target", "localhost", "Target host")
	sshUser := fs.String("ssh-user", "", "SSH user (defaults to ~/.ssh/config or current user)")
	sshKey := fs.String("ssh-key", "", "SSH private key path (defaults to ~/.ssh/config)")
	show := fs.Bool("show", false, "Show current configuration")
	pushFile := fs.String("push", "", "Validate and push a daemon config file")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	DebugMode = *debug
	monitoring.SetDebug(*debug)

	resolvedHost, resolvedUser, resolvedKey, identityAgent, err := deploy.ResolveSSHTarget(*target, *sshUser, *sshKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve SSH config: %v\n", err)
		os.Exit(1)
	}
	if resolvedUser == "" {
		resolvedUser = os.Getenv("USER")
	}

	cfg := &ConfigManager{
		Target:        resolvedHost,
		SSHUser:       resolvedUser,
		SSHKey:        resolvedKey,
		IdentityAgent: identityAgent,
	}

	switch {
	case *show:
		if err := cfg.Show(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to show config: %v\n", err)
			os.Exit(1)
		}
	case *pushFile != "":
		if err := cfg.Push(*pushFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to push config: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "Use --show or --push <file>")
		fs.Usage()
		os.Exit(1)
	}
}

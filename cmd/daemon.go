// daemon.go — background process management for the webhook server.
//
// Usage:
//
//	postpilot serve start    — start the server as a background daemon
//	postpilot serve stop     — send SIGTERM and wait for exit
//	postpilot serve restart  — stop + start
//	postpilot serve status   — check the running daemon
//	postpilot serve          — run in the foreground
package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const pidFileName = "postpilot.pid"

func init() {
	serveCmd.AddCommand(startCmd)
	serveCmd.AddCommand(stopCmd)
	serveCmd.AddCommand(restartCmd)
	serveCmd.AddCommand(serveStatusCmd)
}

// --- PID file helpers ---

func pidFilePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".postpilot", pidFileName)
}

func writePID(pid int) error {
	dir := filepath.Dir(pidFilePath())
	os.MkdirAll(dir, 0755)
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0644)
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID() {
	os.Remove(pidFilePath())
}

// isRunning checks if a process with the given PID is alive.
func isRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// getRunningPID returns the daemon PID if it is alive.
func getRunningPID() (int, bool) {
	pid, err := readPID()
	if err != nil {
		return 0, false
	}
	if !isRunning(pid) {
		removePID()
		return 0, false
	}
	return pid, true
}

func logFilePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".postpilot", "postpilot.log")
}

// spawnDaemon re-executes the binary as a detached foreground server.
func spawnDaemon(exe string) (*os.Process, error) {
	serveArgs := []string{"serve"}
	if servePort != 0 {
		serveArgs = append(serveArgs, "--port", strconv.Itoa(servePort))
	}
	if configPath != "" {
		serveArgs = append(serveArgs, "--config", configPath)
	}

	os.MkdirAll(filepath.Dir(logFilePath()), 0755)
	outFile, err := os.OpenFile(logFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file: %w", err)
	}
	defer outFile.Close()

	proc := exec.Command(exe, serveArgs...)
	proc.Stdout = outFile
	proc.Stderr = outFile
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	proc.Env = os.Environ()

	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("failed to start daemon: %w", err)
	}
	return proc.Process, nil
}

func stopDaemon(pid int, timeout time.Duration) {
	if proc, err := os.FindProcess(pid); err == nil {
		proc.Signal(syscall.SIGTERM)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !isRunning(pid) {
			removePID()
			return
		}
		time.Sleep(500 * time.Millisecond)
	}

	if proc, err := os.FindProcess(pid); err == nil {
		proc.Signal(syscall.SIGKILL)
	}
	time.Sleep(500 * time.Millisecond)
	removePID()
}

// --- Subcommands ---

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the webhook server as a background daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if pid, ok := getRunningPID(); ok {
			return fmt.Errorf("postpilot server is already running (PID %d)", pid)
		}

		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("cannot find executable: %w", err)
		}

		fmt.Println("🚀 Starting postpilot server...")
		proc, err := spawnDaemon(exe)
		if err != nil {
			return err
		}
		pid := proc.Pid
		proc.Release()
		writePID(pid)

		fmt.Printf("✅ Server started (PID %d)\n", pid)
		fmt.Printf("   PID file: %s\n", pidFilePath())
		fmt.Printf("   Log: %s\n", logFilePath())
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running postpilot server",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, ok := getRunningPID()
		if !ok {
			fmt.Println("ℹ️ postpilot server is not running")
			return nil
		}

		fmt.Printf("🛑 Stopping server (PID %d)...\n", pid)
		stopDaemon(pid, 10*time.Second)
		fmt.Println("✅ Server stopped")
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the postpilot server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if pid, ok := getRunningPID(); ok {
			fmt.Printf("🔄 Restarting server (PID %d)...\n", pid)
			stopDaemon(pid, 10*time.Second)
			fmt.Println("   Old server stopped")
		}
		return startCmd.RunE(cmd, args)
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the postpilot server daemon",
	Run: func(cmd *cobra.Command, args []string) {
		pid, ok := getRunningPID()
		if !ok {
			fmt.Println("⚫ postpilot server is not running")
			return
		}

		fmt.Printf("✅ postpilot server running (PID %d)\n", pid)
		fmt.Printf("   PID file: %s\n", pidFilePath())

		if data, err := os.ReadFile(logFilePath()); err == nil {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			start := len(lines) - 5
			if start < 0 {
				start = 0
			}
			fmt.Println("   Last log lines:")
			for _, l := range lines[start:] {
				fmt.Printf("     %s\n", l)
			}
		}
	},
}

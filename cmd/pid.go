package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vibast-solutions/ms-go-locks/app/lock"
	"github.com/vibast-solutions/ms-go-locks/config"
)

var pidCheckOnly bool

var pidCmd = &cobra.Command{
	Use:   "pid <path>",
	Short: "Hold a PID file lock until interrupted",
	Long: "Take an exclusive PID file lock, write this process id into it and hold it until SIGINT or SIGTERM. " +
		"When another process holds it, print that process id and exit with status 1.",
	Args: cobra.ExactArgs(1),
	Run:  runPid,
}

// init registers the pid command.
func init() {
	pidCmd.Flags().BoolVar(&pidCheckOnly, "check", false, "only print the pid recorded in the file")
	rootCmd.AddCommand(pidCmd)
}

// runPid acquires the PID file lock and waits for a shutdown signal.
func runPid(_ *cobra.Command, args []string) {
	path := args[0]

	if pidCheckOnly {
		pid, ok := lock.ReadPID(path)
		if !ok {
			fmt.Fprintf(os.Stderr, "no pid recorded in %s\n", path)
			os.Exit(1)
		}
		fmt.Println(pid)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger := newLogger(cfg.LogLevel)

	l, err := lock.NewPidFileLock(path, lock.WithLogger(logger))
	if err != nil {
		logger.Fatalf("Failed to build pid lock: %v", err)
	}

	owner, acquired, err := l.Enter(context.Background())
	if err != nil {
		logger.Fatalf("Failed to lock %s: %v", path, err)
	}
	if !acquired {
		if owner > 0 {
			fmt.Fprintf(os.Stderr, "%s is locked by pid %d\n", path, owner)
		} else {
			fmt.Fprintf(os.Stderr, "%s is locked\n", path)
		}
		os.Exit(1)
	}

	logger.WithField("pid", os.Getpid()).Infof("Holding %s", path)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := l.Release(context.Background()); err != nil {
		logger.Fatalf("Failed to release %s: %v", path, err)
	}
	logger.Info("Pid lock released")
}

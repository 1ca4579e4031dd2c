package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vibast-solutions/ms-go-locks/app/lock"
	"github.com/vibast-solutions/ms-go-locks/app/service"
	"github.com/vibast-solutions/ms-go-locks/config"
)

const (
	backendFile      = "file"
	backendRedis     = "redis"
	backendMySQL     = "mysql"
	backendSemaphore = "semaphore"

	defaultRunLockName = "ms-go-locks.lock"
)

var runFlags struct {
	backend        string
	name           string
	maximum        int
	timeout        time.Duration
	checkInterval  time.Duration
	failWhenLocked bool
}

var runCmd = &cobra.Command{
	Use:   "run [flags] -- command [args...]",
	Short: "Run a command while holding a lock",
	Long: "Acquire a lock on the chosen backend, run the command and release the lock when it exits. " +
		"The command's exit status is passed through; lock failures exit with status 1.",
	Args: cobra.MinimumNArgs(1),
	Run:  runRun,
}

// init registers the run command and its flags.
func init() {
	flags := runCmd.Flags()
	flags.StringVar(&runFlags.backend, "backend", backendFile, "lock backend: file, redis, mysql or semaphore")
	flags.StringVar(&runFlags.name, "name", defaultRunLockName, "lock file (relative to LOCK_DIR), channel, MySQL lock or semaphore name")
	flags.IntVar(&runFlags.maximum, "max", 1, "semaphore slots")
	flags.DurationVar(&runFlags.timeout, "timeout", lock.DefaultTimeout, "how long to wait for the lock; negative waits forever")
	flags.DurationVar(&runFlags.checkInterval, "check-interval", lock.DefaultCheckInterval, "pause between attempts")
	flags.BoolVar(&runFlags.failWhenLocked, "fail-when-locked", false, "fail immediately when the lock is taken")
	rootCmd.AddCommand(runCmd)
}

// runRun acquires the lock and runs the command under it.
func runRun(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger := newLogger(cfg.LogLevel)

	opts := append(cfg.LockOptions(), lock.WithLogger(logger))
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		opts = append(opts, lock.WithTimeout(runFlags.timeout))
	}
	if flags.Changed("check-interval") {
		opts = append(opts, lock.WithCheckInterval(runFlags.checkInterval))
	}
	if flags.Changed("fail-when-locked") {
		opts = append(opts, lock.WithFailWhenLocked(runFlags.failWhenLocked))
	}

	locker, closeLocker, err := buildLocker(cfg, runFlags.backend, runFlags.name, runFlags.maximum, opts)
	if err != nil {
		logger.Fatalf("Failed to build %s lock: %v", runFlags.backend, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	runner := service.NewRunner(locker, logger.WithField("backend", runFlags.backend))
	err = runner.Run(ctx, args[0], args[1:])
	stop()
	closeLocker()

	if err != nil {
		logger.Errorf("Run failed: %v", err)
	}
	os.Exit(service.ExitCode(err))
}

// buildLocker wires the requested backend. The returned func closes any
// connection the backend opened.
func buildLocker(cfg *config.Config, backend, name string, maximum int, opts []lock.Option) (lock.Locker, func(), error) {
	switch backend {
	case backendFile:
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.LockDir, path)
		}
		l, err := lock.NewFileLock(path, opts...)
		if err != nil {
			return nil, nil, err
		}
		return l, func() {}, nil

	case backendSemaphore:
		opts = append(opts, lock.WithName(name), lock.WithDirectory(cfg.LockDir))
		s, err := lock.NewBoundedSemaphore(maximum, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil

	case backendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect to Redis: %w", err)
		}
		l := lock.NewRedisLock(name, append(opts, lock.WithRedisClient(rdb))...)
		return l, func() { _ = rdb.Close() }, nil

	case backendMySQL:
		if cfg.MySQLDSN == "" {
			return nil, nil, fmt.Errorf("MYSQL_DSN is required for the mysql backend")
		}
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		l := lock.NewMySQLLock(db, name, opts...)
		return l, func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

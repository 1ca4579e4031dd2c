package lock

import (
	"context"
	"database/sql"
	"errors"
	"runtime"

	"github.com/sirupsen/logrus"
)

var errNullLockResult = errors.New("GET_LOCK returned NULL")

// MySQLLock is a MySQL named lock (GET_LOCK) held on a dedicated connection.
// Each attempt asks for the lock without waiting server side; the retry
// engine does the waiting.
type MySQLLock struct {
	db   *sql.DB
	name string
	opts *options

	conn    *sql.Conn
	cleanup runtime.Cleanup
}

// NewMySQLLock constructs a MySQL-based advisory lock named name.
func NewMySQLLock(db *sql.DB, name string, opts ...Option) *MySQLLock {
	return &MySQLLock{
		db:   db,
		name: name,
		opts: defaultOptions().apply(opts),
	}
}

// Name returns the MySQL lock name.
func (l *MySQLLock) Name() string {
	return l.name
}

// Held reports whether this instance holds the lock.
func (l *MySQLLock) Held() bool {
	return l.conn != nil
}

// Acquire obtains the named lock and keeps its connection until Release.
func (l *MySQLLock) Acquire(ctx context.Context, opts ...AcquireOption) error {
	if l.conn != nil {
		return &Error{Op: "acquire", Name: l.name, Kind: ErrAlreadyHeld}
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return &Error{Op: "connect", Name: l.name, Kind: ErrLockFailed, Err: err}
	}

	r := newRetrier(l.opts, backendMySQL, opts)
	err = r.run(ctx, l.name, func(ctx context.Context) (bool, error) {
		return l.tryLock(ctx, conn)
	})
	if err != nil {
		_ = conn.Close()
		return err
	}

	l.conn = conn
	l.cleanup = runtime.AddCleanup(l, releaseLeakedConn, leakedConn{conn: conn, name: l.name, log: l.opts.logger})
	observeHeld(backendMySQL, 1)
	return nil
}

func (l *MySQLLock) tryLock(ctx context.Context, conn *sql.Conn) (bool, error) {
	var acquired sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", l.name).Scan(&acquired); err != nil {
		return false, &Error{Op: "lock", Name: l.name, Kind: ErrLockFailed, Err: err}
	}
	if !acquired.Valid {
		return false, &Error{Op: "lock", Name: l.name, Kind: ErrLockFailed, Err: errNullLockResult}
	}
	return acquired.Int64 == 1, nil
}

// Release frees the named lock and closes its connection.
func (l *MySQLLock) Release(ctx context.Context) error {
	conn := l.conn
	if conn == nil {
		return nil
	}
	l.conn = nil
	l.cleanup.Stop()
	observeHeld(backendMySQL, -1)

	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", l.name); err != nil {
		return &Error{Op: "release", Name: l.name, Err: err}
	}
	return nil
}

type leakedConn struct {
	conn *sql.Conn
	name string
	log  logrus.FieldLogger
}

// releaseLeakedConn must release before closing: a closed *sql.Conn goes back
// to the pool with its session, and the named lock with it.
func releaseLeakedConn(c leakedConn) {
	observeHeld(backendMySQL, -1)
	defer c.conn.Close()
	if _, err := c.conn.ExecContext(context.Background(), "SELECT RELEASE_LOCK(?)", c.name); err != nil {
		c.log.WithField("lock", c.name).Errorf("release leaked lock: %v", err)
		return
	}
	c.log.WithField("lock", c.name).Warn("lock released by garbage collector; release it explicitly")
}

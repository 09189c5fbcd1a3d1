package memcachedata

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goforj/datasource/dscore"
)

var errClosed = dscore.NewFail(dscore.StatusConnectionNotInit, "memcache link is closed")

// exptime converts an expiry into protocol seconds; zero keeps the item until evicted.
func exptime(expire time.Duration) int {
	if expire <= 0 {
		return 0
	}
	seconds := int(expire / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func (l *Link) deadline(ctx context.Context) {
	if d, ok := ctx.Deadline(); ok {
		_ = l.conn.SetDeadline(d)
		return
	}
	_ = l.conn.SetDeadline(time.Now().Add(l.timeout))
}

// broken drops the connection after a protocol desync.
func (l *Link) broken() {
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
}

func (l *Link) get(ctx context.Context, key string) ([]byte, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil, false, errClosed
	}
	l.deadline(ctx)

	if _, err := fmt.Fprintf(l.conn, "get %s\r\n", key); err != nil {
		l.broken()
		return nil, false, err
	}
	line, err := l.reader.ReadString('\n')
	if err != nil {
		l.broken()
		return nil, false, err
	}
	if line == "END\r\n" {
		return nil, false, nil
	}

	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) < 4 || fields[0] != "VALUE" {
		l.broken()
		return nil, false, fmt.Errorf("unexpected response: %s", strings.TrimSpace(line))
	}
	size, err := strconv.Atoi(fields[3])
	if err != nil {
		l.broken()
		return nil, false, fmt.Errorf("parse length: %w", err)
	}
	// value, trailing \r\n, then END\r\n
	value := make([]byte, size+2)
	if _, err := io.ReadFull(l.reader, value); err != nil {
		l.broken()
		return nil, false, err
	}
	if _, err := l.reader.ReadString('\n'); err != nil {
		l.broken()
		return nil, false, err
	}
	return value[:size], true, nil
}

// store runs set, add or replace and reports whether the item was stored.
func (l *Link) store(ctx context.Context, verb, key string, value []byte, expire time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return false, errClosed
	}
	l.deadline(ctx)

	if _, err := fmt.Fprintf(l.conn, "%s %s 0 %d %d\r\n", verb, key, exptime(expire), len(value)); err != nil {
		l.broken()
		return false, err
	}
	payload := make([]byte, 0, len(value)+2)
	payload = append(append(payload, value...), '\r', '\n')
	if _, err := l.conn.Write(payload); err != nil {
		l.broken()
		return false, err
	}
	line, err := l.reader.ReadString('\n')
	if err != nil {
		l.broken()
		return false, err
	}
	switch {
	case strings.HasPrefix(line, "STORED"):
		return true, nil
	case strings.HasPrefix(line, "NOT_STORED"):
		return false, nil
	default:
		return false, fmt.Errorf("memcache %s failed: %s", verb, strings.TrimSpace(line))
	}
}

func (l *Link) remove(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return errClosed
	}
	l.deadline(ctx)

	if _, err := fmt.Fprintf(l.conn, "delete %s\r\n", key); err != nil {
		l.broken()
		return err
	}
	line, err := l.reader.ReadString('\n')
	if err != nil {
		l.broken()
		return err
	}
	if strings.HasPrefix(line, "DELETED") || strings.HasPrefix(line, "NOT_FOUND") {
		return nil
	}
	return fmt.Errorf("memcache delete failed: %s", strings.TrimSpace(line))
}

func (l *Link) flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return errClosed
	}
	l.deadline(ctx)

	if _, err := fmt.Fprintf(l.conn, "flush_all\r\n"); err != nil {
		l.broken()
		return err
	}
	line, err := l.reader.ReadString('\n')
	if err != nil {
		l.broken()
		return err
	}
	if !strings.HasPrefix(line, "OK") {
		return fmt.Errorf("memcache flush failed: %s", strings.TrimSpace(line))
	}
	return nil
}

package memcachedata

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeMemcached struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

func startFakeMemcached(t *testing.T) *fakeMemcached {
	t.Helper()
	fake := &fakeMemcached{data: map[string][]byte{}, ttls: map[string]int{}}
	orig := dialMemcached
	t.Cleanup(func() { dialMemcached = orig })
	dialMemcached = func(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error) {
		server, client := net.Pipe()
		go fake.serve(server)
		return client, nil
	}
	return fake
}

func (f *fakeMemcached) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		f.mu.Lock()
		switch parts[0] {
		case "get":
			if v, ok := f.data[parts[1]]; ok {
				fmt.Fprintf(w, "VALUE %s 0 %d\r\n", parts[1], len(v))
				w.Write(v)
				w.WriteString("\r\n")
			}
			w.WriteString("END\r\n")
		case "set", "add", "replace":
			// <verb> <key> <flags> <exptime> <bytes>
			key := parts[1]
			ttl, _ := strconv.Atoi(parts[3])
			n, _ := strconv.Atoi(parts[4])
			buf := make([]byte, n+2)
			if _, err := io.ReadFull(r, buf); err != nil {
				f.mu.Unlock()
				return
			}
			_, exists := f.data[key]
			if (parts[0] == "add" && exists) || (parts[0] == "replace" && !exists) {
				w.WriteString("NOT_STORED\r\n")
				break
			}
			f.data[key] = buf[:n]
			f.ttls[key] = ttl
			w.WriteString("STORED\r\n")
		case "delete":
			if _, ok := f.data[parts[1]]; ok {
				delete(f.data, parts[1])
				w.WriteString("DELETED\r\n")
			} else {
				w.WriteString("NOT_FOUND\r\n")
			}
		case "flush_all":
			clear(f.data)
			w.WriteString("OK\r\n")
		default:
			w.WriteString("ERROR\r\n")
		}
		f.mu.Unlock()
		w.Flush()
	}
}

func (f *fakeMemcached) ttl(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}

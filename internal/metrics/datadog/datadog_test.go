package datadog

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"courtetl/internal/metrics"
)

type call struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeClient struct {
	calls   []call
	flushed bool
	closed  bool
}

func (f *fakeClient) Count(name string, value int64, tags []string, _ float64) error {
	f.calls = append(f.calls, call{"count", name, float64(value), tags})
	return nil
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, _ float64) error {
	f.calls = append(f.calls, call{"histogram", name, value, tags})
	return nil
}

func (f *fakeClient) Flush() error { f.flushed = true; return nil }
func (f *fakeClient) Close() error { f.closed = true; return nil }

func TestBackendForwardsWithSortedTags(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	b := &Backend{client: fc}
	b.IncCounter(metrics.RowsTotal, 12, metrics.Labels{"step": "dockets", "kind": "read", "job": "judges"})
	b.ObserveHistogram(metrics.StepDuration, 0.25, metrics.Labels{"step": "dockets"})
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}

	want := []call{
		{"count", metrics.RowsTotal, 12, []string{"job:judges", "kind:read", "step:dockets"}},
		{"histogram", metrics.StepDuration, 0.25, []string{"step:dockets"}},
	}
	if diff := cmp.Diff(want, fc.calls, cmp.AllowUnexported(call{})); diff != "" {
		t.Fatalf("calls (-want +got):\n%s", diff)
	}
	if !fc.flushed || !fc.closed {
		t.Fatalf("flush/close not called: %+v", fc)
	}
}

func TestNewBackendRequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("expected error for empty addr")
	}
}

func TestNewBackendSendsOverUDP(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp not available: %v", err)
	}
	defer conn.Close()

	b, err := NewBackend(Config{Addr: conn.LocalAddr().String(), Namespace: "courtetl."})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.ChunksTotal, 1, metrics.Labels{"step": "dockets"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1024)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); !strings.Contains(got, "courtetl."+metrics.ChunksTotal+":1|c") || !strings.Contains(got, "step:dockets") {
		t.Fatalf("packet = %q", got)
	}
}

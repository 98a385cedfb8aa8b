package monitoring

import (
	"errors"
	"testing"
	"time"
)

type recordMonitor struct {
	errs []error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = tags
}
func (r *recordMonitor) Flush(time.Duration) {}

func TestCaptureException(t *testing.T) {
	mon := &recordMonitor{}
	Init(mon)
	defer Init(NopMonitor{})

	CaptureException(nil, nil)
	if len(mon.errs) != 0 {
		t.Fatalf("nil error must not be captured")
	}
	CaptureException(errors.New("boom"), map[string]string{"module": "test"})
	if len(mon.errs) != 1 || mon.tags["module"] != "test" {
		t.Fatalf("capture not forwarded: %#v", mon)
	}
}

func TestInitIgnoresNil(t *testing.T) {
	mon := &recordMonitor{}
	Init(mon)
	defer Init(NopMonitor{})
	Init(nil)
	CaptureException(errors.New("x"), nil)
	if len(mon.errs) != 1 {
		t.Fatalf("monitor replaced by nil")
	}
}

package eyetrack

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestSetLogWritersRoutesStreams(t *testing.T) {
	defer SetLogWriters(LogWriters{})

	var ops, diag, trace bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag, Trace: &trace})

	Opsf("ops message %d", 1)
	Diagf("diag message %d", 2)
	Tracef("trace message %d", 3)

	if !strings.Contains(ops.String(), "ops message 1") {
		t.Errorf("ops stream = %q, want ops message", ops.String())
	}
	if !strings.Contains(diag.String(), "diag message 2") {
		t.Errorf("diag stream = %q, want diag message", diag.String())
	}
	if !strings.Contains(trace.String(), "trace message 3") {
		t.Errorf("trace stream = %q, want trace message", trace.String())
	}

	// No cross-talk between streams.
	if strings.Contains(ops.String(), "diag message") || strings.Contains(ops.String(), "trace message") {
		t.Errorf("ops stream leaked other streams: %q", ops.String())
	}

	// Every line carries the component prefix.
	for name, buf := range map[string]*bytes.Buffer{"ops": &ops, "diag": &diag, "trace": &trace} {
		if !strings.Contains(buf.String(), "[eyetrack] ") {
			t.Errorf("%s stream missing prefix: %q", name, buf.String())
		}
	}
}

func TestSetLogWritersNilDisables(t *testing.T) {
	defer SetLogWriters(LogWriters{})

	var diag bytes.Buffer
	SetLogWriters(LogWriters{Diag: &diag})

	// Ops and trace are nil: these must not panic and must write nothing.
	Opsf("dropped")
	Tracef("dropped")
	Diagf("kept")

	if !strings.Contains(diag.String(), "kept") {
		t.Errorf("diag stream = %q, want message", diag.String())
	}
	if strings.Contains(diag.String(), "dropped") {
		t.Errorf("disabled streams leaked into diag: %q", diag.String())
	}
}

func TestLogWritersConcurrent(t *testing.T) {
	defer SetLogWriters(LogWriters{})

	var buf bytes.Buffer
	SetLogWriters(LogWriters{Ops: &buf})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				Opsf("worker %d line %d", id, j)
			}
		}(i)
	}
	wg.Wait()

	if !strings.Contains(buf.String(), "worker") {
		t.Error("no output from concurrent logging")
	}
}

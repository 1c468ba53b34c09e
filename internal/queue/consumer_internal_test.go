package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewConsumer_DefaultsZeroConfig(t *testing.T) {
	c := NewConsumer(nil, nil, ConsumerConfig{})

	if c.workers != 3 {
		t.Errorf("default workers = %d; want 3", c.workers)
	}
	if c.prefetch != 1 {
		t.Errorf("default prefetch = %d; want 1", c.prefetch)
	}
}

func TestNewConsumer_PreservesCustomConfig(t *testing.T) {
	c := NewConsumer(nil, nil, ConsumerConfig{Workers: 10, Prefetch: 5})

	if c.workers != 10 {
		t.Errorf("workers = %d; want 10", c.workers)
	}
	if c.prefetch != 5 {
		t.Errorf("prefetch = %d; want 5", c.prefetch)
	}
}

func TestReportConsumer_SubscribeUnsubscribe(t *testing.T) {
	rc := &ReportConsumer{
		handlers: make(map[string]ReportHandler),
	}

	jobID := uuid.New().String()

	rc.Subscribe(jobID, func(report *CheckReport) {})

	rc.handlersMu.RLock()
	_, exists := rc.handlers[jobID]
	rc.handlersMu.RUnlock()

	if !exists {
		t.Error("handler should be registered after Subscribe")
	}

	rc.Unsubscribe(jobID)

	rc.handlersMu.RLock()
	_, exists = rc.handlers[jobID]
	rc.handlersMu.RUnlock()

	if exists {
		t.Error("handler should be removed after Unsubscribe")
	}
}

func TestReportConsumer_Subscribe_ConcurrentSafe(t *testing.T) {
	rc := &ReportConsumer{
		handlers: make(map[string]ReportHandler),
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			jobID := uuid.New().String()

			rc.Subscribe(jobID, func(report *CheckReport) {})
			time.Sleep(time.Microsecond)
			rc.Unsubscribe(jobID)
		}()
	}

	wg.Wait()

	rc.handlersMu.RLock()
	count := len(rc.handlers)
	rc.handlersMu.RUnlock()

	if count != 0 {
		t.Errorf("all handlers should be unsubscribed, got %d remaining", count)
	}
}

func TestReportConsumer_Subscribe_OverwritesPrevious(t *testing.T) {
	rc := &ReportConsumer{
		handlers: make(map[string]ReportHandler),
	}

	jobID := uuid.New().String()
	called1 := false
	called2 := false

	rc.Subscribe(jobID, func(report *CheckReport) { called1 = true })
	rc.Subscribe(jobID, func(report *CheckReport) { called2 = true })

	rc.handlersMu.RLock()
	handler, ok := rc.handlers[jobID]
	rc.handlersMu.RUnlock()

	if !ok {
		t.Fatal("handler should exist")
	}

	handler(&CheckReport{})

	if called1 {
		t.Error("first handler should NOT have been called (was overwritten)")
	}
	if !called2 {
		t.Error("second handler should have been called")
	}
}

func TestReportConsumer_Unsubscribe_NonExistent(t *testing.T) {
	rc := &ReportConsumer{
		handlers: make(map[string]ReportHandler),
	}

	// Must not panic
	rc.Unsubscribe("non-existent-job-id")
}

func TestReportConsumer_Stop_NilCancelFunc(t *testing.T) {
	rc := &ReportConsumer{
		handlers: make(map[string]ReportHandler),
	}

	// Must not panic
	rc.Stop()
}

func TestConsumer_Stop_NilCancelFunc(t *testing.T) {
	c := &Consumer{}

	// Must not panic
	c.Stop()
}

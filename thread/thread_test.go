package thread

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/store"
)

func testSupervisor(backend store.Backend) *Supervisor {
	return NewSupervisor(backend, Config{
		FlushInterval:        20 * time.Millisecond,
		SleepOnConnectionErr: 5 * time.Millisecond,
		MaxConnectionRetries: 2,
	})
}

func waitForTicks(t *testing.T, module *MockModule, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		calls := 0
		for _, c := range module.Calls {
			if c.Method == "OnTick" {
				calls++
			}
		}
		if calls >= n {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d OnTick calls, saw %d", n, calls)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSupervisorRunsUntilStopped(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("UpdateThreadStatus", context.Background(), mock.Anything).Return(error(nil)).Maybe()

	module := &MockModule{}
	module.On("OnInit", context.Background(), false).Return(error(nil))
	module.On("OnTick", context.Background()).Return(error(nil))
	module.On("OnClear").Return(error(nil))

	s := testSupervisor(backend)
	row := crawlserv.Thread{ID: 1, Module: crawlserv.ModuleCrawler}

	if err := s.Register(context.Background(), row, module, false); err != nil {
		t.Fatalf("Register: %v", err)
	}

	waitForTicks(t, module, 3)

	if err := s.Stop(1); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	module.AssertCalled(t, "OnClear")
}

func TestSupervisorPauseBlocksTicksUntilUnpause(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("UpdateThreadStatus", context.Background(), mock.Anything).Return(error(nil)).Maybe()

	module := &MockModule{}
	module.On("OnInit", context.Background(), false).Return(error(nil))
	module.On("OnTick", context.Background()).Return(error(nil))
	module.On("OnPause").Return(true)
	module.On("OnUnpause").Return()
	module.On("OnClear").Return(error(nil))

	s := testSupervisor(backend)
	row := crawlserv.Thread{ID: 2, Module: crawlserv.ModuleParser}

	if err := s.Register(context.Background(), row, module, false); err != nil {
		t.Fatalf("Register: %v", err)
	}
	waitForTicks(t, module, 1)

	ok, err := s.Pause(2)
	if err != nil || !ok {
		t.Fatalf("Pause: ok=%v err=%v", ok, err)
	}

	ticksAtPause := countTicks(module)
	time.Sleep(50 * time.Millisecond)
	if countTicks(module) != ticksAtPause {
		t.Fatalf("expected no ticks while paused, saw %d -> %d", ticksAtPause, countTicks(module))
	}

	if err := s.Unpause(2); err != nil {
		t.Fatalf("Unpause: %v", err)
	}
	waitForTicks(t, module, ticksAtPause+2)

	if err := s.Stop(2); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSupervisorPauseRejectedByModule(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("UpdateThreadStatus", context.Background(), mock.Anything).Return(error(nil)).Maybe()

	module := &MockModule{}
	module.On("OnInit", context.Background(), false).Return(error(nil))
	module.On("OnTick", context.Background()).Return(error(nil))
	module.On("OnPause").Return(false)
	module.On("OnClear").Return(error(nil))

	s := testSupervisor(backend)
	row := crawlserv.Thread{ID: 3, Module: crawlserv.ModuleExtractor}

	if err := s.Register(context.Background(), row, module, false); err != nil {
		t.Fatalf("Register: %v", err)
	}
	waitForTicks(t, module, 1)

	ok, err := s.Pause(3)
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if ok {
		t.Fatal("expected Pause to be rejected when OnPause returns false")
	}

	if err := s.Stop(3); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSupervisorTerminatesOnNonTransientError(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("UpdateThreadStatus", context.Background(), mock.Anything).Return(error(nil)).Maybe()

	module := &MockModule{}
	module.On("OnInit", context.Background(), false).Return(error(nil))
	module.On("OnTick", context.Background()).Return(errPermanent)
	module.On("OnClear").Return(error(nil))

	s := testSupervisor(backend)
	row := crawlserv.Thread{ID: 4, Module: crawlserv.ModuleAnalyzer}

	if err := s.Register(context.Background(), row, module, false); err != nil {
		t.Fatalf("Register: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		s.mu.Lock()
		_, stillRunning := s.threads[4]
		s.mu.Unlock()
		if !stillRunning {
			break
		}
		select {
		case <-deadline:
			t.Fatal("thread never terminated after a permanent error")
		case <-time.After(5 * time.Millisecond):
		}
	}
	module.AssertCalled(t, "OnClear")
}

func TestSendInterruptPersistsInterruptedNotStopped(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("UpdateThreadStatus", context.Background(), mock.Anything).Return(error(nil)).Maybe()

	module := &MockModule{}
	module.On("OnInit", context.Background(), false).Return(error(nil))
	module.On("OnTick", context.Background()).Return(error(nil))
	module.On("OnClear").Return(error(nil))

	s := testSupervisor(backend)
	row := crawlserv.Thread{ID: 5, Module: crawlserv.ModuleCrawler}

	if err := s.Register(context.Background(), row, module, false); err != nil {
		t.Fatalf("Register: %v", err)
	}
	waitForTicks(t, module, 1)

	if err := s.SendInterrupt(context.Background(), 5); err != nil {
		t.Fatalf("SendInterrupt: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		s.mu.Lock()
		_, stillRunning := s.threads[5]
		s.mu.Unlock()
		if !stillRunning {
			break
		}
		select {
		case <-deadline:
			t.Fatal("thread never finalized after SendInterrupt")
		case <-time.After(5 * time.Millisecond):
		}
	}

	module.AssertNumberOfCalls(t, "OnClear", 1)

	var lastStatus crawlserv.ThreadStatus
	for _, c := range backend.Calls {
		if c.Method != "UpdateThreadStatus" {
			continue
		}
		row := c.Arguments.Get(1).(crawlserv.Thread)
		if row.ID == 5 {
			lastStatus = row.Status
		}
	}
	if lastStatus != crawlserv.ThreadInterrupted {
		t.Fatalf("expected final persisted status Interrupted, got %q", lastStatus)
	}
}

func countTicks(m *MockModule) int {
	n := 0
	for _, c := range m.Calls {
		if c.Method == "OnTick" {
			n++
		}
	}
	return n
}

var errPermanent = permanentErr{}

type permanentErr struct{}

func (permanentErr) Error() string { return "permanent failure" }

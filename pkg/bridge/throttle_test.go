package bridge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordedWrite struct {
	id         int
	brightness int
	at         time.Time
}

type fakeDriver struct {
	mutex  sync.Mutex
	writes []recordedWrite
	fail   map[int]error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{fail: map[int]error{}}
}

func (d *fakeDriver) QueryAll() ([]LoadLevel, error) {
	return nil, nil
}

func (d *fakeDriver) SetBrightness(id int, brightness int) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if err, ok := d.fail[id]; ok {
		return err
	}
	d.writes = append(d.writes, recordedWrite{id: id, brightness: brightness, at: time.Now()})
	return nil
}

func (d *fakeDriver) recorded() []recordedWrite {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]recordedWrite{}, d.writes...)
}

func waitForWrites(t *testing.T, driver *fakeDriver, count int) []recordedWrite {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		writes := driver.recorded()
		if len(writes) >= count {
			return writes
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d writes, got %d", count, len(driver.recorded()))
	return nil
}

func TestQueueDispatchesInOrderWithSpacing(t *testing.T) {
	driver := newFakeDriver()
	store := seededStore()
	queue := NewCommandQueue(driver, store, 20*time.Millisecond, nil)
	queue.Start()
	defer queue.Stop()

	assert.NoError(t, queue.Enqueue(PendingCommand{LoadId: 118, Kind: CommandSetBrightness, Value: 40}))
	assert.NoError(t, queue.Enqueue(PendingCommand{LoadId: 118, Kind: CommandSetBrightness, Value: 80}))
	assert.NoError(t, queue.Enqueue(PendingCommand{LoadId: 42, Kind: CommandSetPower, Value: 1}))

	writes := waitForWrites(t, driver, 3)
	assert.Equal(t, 40, writes[0].brightness)
	assert.Equal(t, 80, writes[1].brightness)
	assert.Equal(t, 42, writes[2].id)
	assert.GreaterOrEqual(t, writes[1].at.Sub(writes[0].at), 20*time.Millisecond)
	assert.GreaterOrEqual(t, writes[2].at.Sub(writes[1].at), 20*time.Millisecond)
}

func TestQueuePowerOnRestoresLastLevel(t *testing.T) {
	driver := newFakeDriver()
	store := seededStore() // load 118 seeded at brightness 180
	queue := NewCommandQueue(driver, store, time.Millisecond, nil)
	queue.Start()
	defer queue.Stop()

	assert.NoError(t, queue.Enqueue(PendingCommand{LoadId: 118, Kind: CommandSetPower, Value: 0}))
	assert.NoError(t, queue.Enqueue(PendingCommand{LoadId: 118, Kind: CommandSetPower, Value: 1}))

	writes := waitForWrites(t, driver, 2)
	assert.Equal(t, 0, writes[0].brightness)
	assert.Equal(t, 180, writes[1].brightness, "a bare ON must restore the level before the OFF")
}

func TestQueuePowerOnRelaySnapsToFull(t *testing.T) {
	driver := newFakeDriver()
	store := seededStore() // load 42 is not dimmable
	queue := NewCommandQueue(driver, store, time.Millisecond, nil)
	queue.Start()
	defer queue.Stop()

	assert.NoError(t, queue.Enqueue(PendingCommand{LoadId: 42, Kind: CommandSetPower, Value: 1}))

	writes := waitForWrites(t, driver, 1)
	assert.Equal(t, 255, writes[0].brightness)
}

func TestQueueFailedCommandIsDroppedAndLaneContinues(t *testing.T) {
	driver := newFakeDriver()
	driver.fail[118] = errors.New("controller busy")
	store := seededStore()

	var notified []LoadState
	var mutex sync.Mutex
	queue := NewCommandQueue(driver, store, time.Millisecond, func(prior LoadState, current LoadState) {
		mutex.Lock()
		defer mutex.Unlock()
		notified = append(notified, current)
	})
	queue.Start()
	defer queue.Stop()

	assert.NoError(t, queue.Enqueue(PendingCommand{LoadId: 118, Kind: CommandSetBrightness, Value: 50}))
	assert.NoError(t, queue.Enqueue(PendingCommand{LoadId: 42, Kind: CommandSetPower, Value: 1}))

	writes := waitForWrites(t, driver, 1)
	assert.Equal(t, 42, writes[0].id)

	mutex.Lock()
	defer mutex.Unlock()
	assert.Len(t, notified, 1, "only the successful command notifies")
	assert.Equal(t, 42, notified[0].Id)

	// Store state of the failed load is untouched.
	load, _ := store.Get(118)
	assert.Equal(t, 180, load.Brightness)
}

func TestQueueAppliesCommandResultToStore(t *testing.T) {
	driver := newFakeDriver()
	store := seededStore()

	var got LoadState
	done := make(chan struct{})
	queue := NewCommandQueue(driver, store, time.Millisecond, func(prior LoadState, current LoadState) {
		got = current
		close(done)
	})
	queue.Start()
	defer queue.Stop()

	assert.NoError(t, queue.Enqueue(PendingCommand{LoadId: 118, Kind: CommandSetBrightness, Value: 64}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the applied callback")
	}
	assert.Equal(t, 64, got.Brightness)
	assert.True(t, got.Power)

	load, _ := store.Get(118)
	assert.Equal(t, 64, load.Brightness)
}

func TestQueueFullRejectsWithoutBlocking(t *testing.T) {
	driver := newFakeDriver()
	store := seededStore()
	// Worker never started, so the channel fills up.
	queue := NewCommandQueue(driver, store, time.Millisecond, nil)

	var err error
	for i := 0; i <= commandQueueCapacity; i++ {
		err = queue.Enqueue(PendingCommand{LoadId: 118, Kind: CommandSetBrightness, Value: 10})
	}
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, commandQueueCapacity, queue.Pending())
}

package bridge

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

const commandQueueCapacity = 256

var ErrQueueFull = errors.New("command queue is full")

// CommandQueue serializes every outbound bus command through a single worker
// and spaces consecutive writes by a fixed delay. The controller chokes when
// commands arrive back to back, so this lane is the only path to the driver.
type CommandQueue struct {
	driver Driver
	store  *StateStore
	delay  time.Duration

	// onApplied is invoked after a successful command updated the store.
	onApplied func(prior LoadState, current LoadState)

	commands chan PendingCommand
	done     chan struct{}
}

func NewCommandQueue(driver Driver, store *StateStore, delay time.Duration, onApplied func(prior LoadState, current LoadState)) *CommandQueue {
	return &CommandQueue{
		driver:    driver,
		store:     store,
		delay:     delay,
		onApplied: onApplied,
		commands:  make(chan PendingCommand, commandQueueCapacity),
		done:      make(chan struct{}),
	}
}

func (q *CommandQueue) Start() {
	go q.worker()
}

// Stop shuts the worker down. Queued commands that have not been dispatched
// yet are dropped.
func (q *CommandQueue) Stop() {
	close(q.done)
}

// Enqueue appends a command to the lane without blocking. Order of acceptance
// is order of dispatch.
func (q *CommandQueue) Enqueue(command PendingCommand) error {
	select {
	case q.commands <- command:
		return nil
	default:
		log.Warn().
			Int("loadId", command.LoadId).
			Str("kind", string(command.Kind)).
			Msg("Dropping command, queue is full")
		return ErrQueueFull
	}
}

func (q *CommandQueue) Pending() int {
	return len(q.commands)
}

func (q *CommandQueue) worker() {
	for {
		select {
		case <-q.done:
			return
		case command := <-q.commands:
			q.dispatch(command)
			// Fixed gap between consecutive writes, even after a failure.
			select {
			case <-q.done:
				return
			case <-time.After(q.delay):
			}
		}
	}
}

// dispatch translates one command into a brightness write. A failed write is
// logged and dropped; the next poll reconciles the real state.
func (q *CommandQueue) dispatch(command PendingCommand) {
	brightness := q.targetBrightness(command)

	if err := q.driver.SetBrightness(command.LoadId, brightness); err != nil {
		metricCommandsFailed.Inc()
		log.Error().Err(err).
			Int("loadId", command.LoadId).
			Int("brightness", brightness).
			Msg("Command rejected by controller")
		return
	}
	metricCommandsSent.Inc()

	prior, current, _ := q.store.ApplyCommandResult(command.LoadId, brightness)
	if q.onApplied != nil {
		q.onApplied(prior, current)
	}
}

// targetBrightness resolves the brightness a command should write. A bare ON
// restores the last nonzero level on dimmers and snaps relays to full.
func (q *CommandQueue) targetBrightness(command PendingCommand) int {
	switch command.Kind {
	case CommandSetPower:
		if command.Value == 0 {
			return 0
		}
		if q.store.IsDimmable(command.LoadId) {
			return q.store.LastNonZero(command.LoadId)
		}
		return 255
	default:
		return command.Value
	}
}

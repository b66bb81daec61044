package bridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gaetancollaud/vantage-mqtt/pkg/vantage"
)

var ErrUnknownLoad = errors.New("unknown load")

// ButtonEvent is a resolved keypad press or release.
type ButtonEvent struct {
	Button vantage.Button
	Action vantage.Action
}

// TaskEvent is a task state change seen on the diagnostic stream.
type TaskEvent struct {
	TaskId  int
	Running bool
}

type LoadChangeHandler func(state LoadState)
type ButtonEventHandler func(event ButtonEvent)
type TaskEventHandler func(event TaskEvent)
type DiscoveryHandler func(entity EntityRef)

// Bridge ties the pieces together: diagnostic lines come in, are parsed and
// debounced into polls, inbound commands go out through the throttled lane,
// and every confirmed state change fans out to the registered handlers.
type Bridge struct {
	driver   Driver
	registry *vantage.Registry
	options  *Options

	store     *StateStore
	queue     *CommandQueue
	discovery *DiscoveryRegistry

	sniperMutex sync.Mutex
	sniper      *Sniper

	handlerMutex      sync.Mutex
	loadHandlers      []LoadChangeHandler
	buttonHandlers    []ButtonEventHandler
	taskHandlers      []TaskEventHandler
	discoveryHandlers []DiscoveryHandler

	now          func() time.Time
	activityKick chan struct{}
	done         chan struct{}
}

func NewBridge(driver Driver, registry *vantage.Registry, options *Options) *Bridge {
	bridge := &Bridge{
		driver:       driver,
		registry:     registry,
		options:      options,
		store:        NewStateStore(),
		discovery:    NewDiscoveryRegistry(),
		now:          time.Now,
		activityKick: make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	bridge.queue = NewCommandQueue(driver, bridge.store, options.CommandThrottle, bridge.onCommandApplied)
	return bridge
}

// Start seeds the state from the inventory and launches the worker loops.
func (b *Bridge) Start() error {
	seeds := []LoadState{}
	for _, load := range b.registry.Loads() {
		seeds = append(seeds, LoadState{
			Id:       load.Id,
			Name:     load.Name,
			Area:     load.Area,
			Dimmable: load.Dimmable,
		})
		entity := EntityRef{Kind: EntityLoad, Id: load.Id, Name: load.Name, Area: load.Area}
		if b.discovery.Observe(entity, b.now()) {
			b.notifyDiscovery(entity)
		}
	}
	b.store.Seed(seeds)

	b.sniperMutex.Lock()
	b.sniper = NewSniper(b.options.QuietTime, b.options.PollInterval, b.now())
	b.sniperMutex.Unlock()

	b.queue.Start()

	if b.options.RefreshAtStart {
		b.PollNow()
	}
	go b.pollLoop()

	log.Info().
		Int("loads", b.store.Count()).
		Dur("quietTime", b.options.QuietTime).
		Dur("pollInterval", b.options.PollInterval).
		Msg("Bridge started")
	return nil
}

func (b *Bridge) Stop() {
	close(b.done)
	b.queue.Stop()
}

func (b *Bridge) Store() *StateStore {
	return b.store
}

func (b *Bridge) Registry() *vantage.Registry {
	return b.registry
}

func (b *Bridge) Discovery() *DiscoveryRegistry {
	return b.discovery
}

// OnLoadChange registers a handler for confirmed load state changes.
func (b *Bridge) OnLoadChange(handler LoadChangeHandler) {
	b.handlerMutex.Lock()
	defer b.handlerMutex.Unlock()
	b.loadHandlers = append(b.loadHandlers, handler)
}

func (b *Bridge) OnButtonEvent(handler ButtonEventHandler) {
	b.handlerMutex.Lock()
	defer b.handlerMutex.Unlock()
	b.buttonHandlers = append(b.buttonHandlers, handler)
}

func (b *Bridge) OnTaskEvent(handler TaskEventHandler) {
	b.handlerMutex.Lock()
	defer b.handlerMutex.Unlock()
	b.taskHandlers = append(b.taskHandlers, handler)
}

// OnDiscovery registers a handler called once per newly seen entity.
func (b *Bridge) OnDiscovery(handler DiscoveryHandler) {
	b.handlerMutex.Lock()
	defer b.handlerMutex.Unlock()
	b.discoveryHandlers = append(b.discoveryHandlers, handler)
}

// SetPower queues an on or off command. ON restores the last nonzero level
// on dimmers.
func (b *Bridge) SetPower(loadId int, on bool) error {
	if _, ok := b.store.Get(loadId); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownLoad, loadId)
	}
	value := 0
	if on {
		value = 1
	}
	return b.queue.Enqueue(PendingCommand{LoadId: loadId, Kind: CommandSetPower, Value: value})
}

// SetBrightness queues a brightness command on the 0-255 scale.
func (b *Bridge) SetBrightness(loadId int, brightness int) error {
	if _, ok := b.store.Get(loadId); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownLoad, loadId)
	}
	if brightness < 0 || brightness > 255 {
		return fmt.Errorf("brightness %d out of range 0-255", brightness)
	}
	return b.queue.Enqueue(PendingCommand{LoadId: loadId, Kind: CommandSetBrightness, Value: brightness})
}

// OnDiagnosticLine feeds one raw line from the controller's diagnostic
// stream into the bridge. Unrecognized lines are ignored.
func (b *Bridge) OnDiagnosticLine(line string) {
	event := vantage.ParseLine(line)
	if event == nil {
		return
	}
	metricEventsParsed.Inc()

	switch event.Type {
	case vantage.EventButton:
		b.handleButton(event)
	case vantage.EventTask:
		b.handleTask(event)
	case vantage.EventLoadStatus:
		b.handleLoadStatus(event)
	}
}

// PollNow issues one bulk query and applies the result, regardless of the
// scheduler state.
func (b *Bridge) PollNow() {
	b.poll()
	b.sniperMutex.Lock()
	defer b.sniperMutex.Unlock()
	if b.sniper != nil {
		b.sniper.PollDone(b.now())
	}
}

func (b *Bridge) handleButton(event *vantage.ActivityEvent) {
	button, known := b.registry.ResolveButton(event.Vid)
	if !known {
		log.Debug().Int("vid", event.Vid).Msg("Button not in inventory, using fallback identity")
	}

	entity := EntityRef{
		Kind:     EntityButton,
		Id:       button.KeypadId,
		Position: button.Position,
		Name:     button.KeypadName,
		Area:     button.Area,
	}
	if b.discovery.Observe(entity, b.now()) {
		b.notifyDiscovery(entity)
	}

	b.handlerMutex.Lock()
	handlers := append([]ButtonEventHandler{}, b.buttonHandlers...)
	b.handlerMutex.Unlock()
	for _, handler := range handlers {
		handler(ButtonEvent{Button: button, Action: event.Action})
	}

	// A press usually means a scene ran, so schedule a confirmation poll.
	if event.Action == vantage.ActionPress {
		b.armSniper()
	}
}

func (b *Bridge) handleTask(event *vantage.ActivityEvent) {
	entity := EntityRef{Kind: EntityTask, Id: event.Vid}
	if b.discovery.Observe(entity, b.now()) {
		b.notifyDiscovery(entity)
	}

	running := event.Action == vantage.ActionPress
	b.handlerMutex.Lock()
	handlers := append([]TaskEventHandler{}, b.taskHandlers...)
	b.handlerMutex.Unlock()
	for _, handler := range handlers {
		handler(TaskEvent{TaskId: event.Vid, Running: running})
	}

	// Only a starting task can have changed load levels.
	if running {
		b.armSniper()
	}
}

func (b *Bridge) handleLoadStatus(event *vantage.ActivityEvent) {
	brightness := vantage.BrightnessFromLevel(event.Level)
	_, current, changed := b.store.ApplyPollResult(event.Vid, brightness)
	if changed {
		b.notifyLoadChange(current)
	}
}

func (b *Bridge) armSniper() {
	b.sniperMutex.Lock()
	if b.sniper != nil {
		b.sniper.Activity(b.now())
	}
	b.sniperMutex.Unlock()

	select {
	case b.activityKick <- struct{}{}:
	default:
	}
}

func (b *Bridge) pollLoop() {
	timer := time.NewTimer(b.nextWake())
	defer timer.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-b.activityKick:
		case <-timer.C:
		}

		if b.pollDue() {
			b.poll()
			b.pollDone()
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(b.nextWake())
	}
}

func (b *Bridge) nextWake() time.Duration {
	b.sniperMutex.Lock()
	defer b.sniperMutex.Unlock()
	return b.sniper.NextWake(b.now())
}

func (b *Bridge) pollDue() bool {
	b.sniperMutex.Lock()
	defer b.sniperMutex.Unlock()
	return b.sniper.PollDue(b.now())
}

func (b *Bridge) pollDone() {
	b.sniperMutex.Lock()
	defer b.sniperMutex.Unlock()
	b.sniper.PollDone(b.now())
}

func (b *Bridge) poll() {
	metricPolls.Inc()
	levels, err := b.driver.QueryAll()
	if err != nil {
		metricPollFailures.Inc()
		log.Error().Err(err).Msg("Bulk state query failed")
		return
	}
	for _, level := range levels {
		_, current, changed := b.store.ApplyPollResult(level.Id, level.Brightness)
		if changed {
			b.notifyLoadChange(current)
		}
	}
}

func (b *Bridge) notifyLoadChange(state LoadState) {
	b.handlerMutex.Lock()
	handlers := append([]LoadChangeHandler{}, b.loadHandlers...)
	b.handlerMutex.Unlock()
	for _, handler := range handlers {
		handler(state)
	}
}

// onCommandApplied adapts the queue callback signature. Command results
// always notify, even when the value did not change, so the requester sees
// its command confirmed.
func (b *Bridge) onCommandApplied(prior LoadState, current LoadState) {
	b.notifyLoadChange(current)
}

func (b *Bridge) notifyDiscovery(entity EntityRef) {
	log.Info().
		Str("kind", string(entity.Kind)).
		Str("id", entity.TopicId()).
		Int("position", entity.Position).
		Msg("New entity discovered")

	b.handlerMutex.Lock()
	handlers := append([]DiscoveryHandler{}, b.discoveryHandlers...)
	b.handlerMutex.Unlock()
	for _, handler := range handlers {
		handler(entity)
	}
}

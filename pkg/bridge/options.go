package bridge

import "time"

// Options tunes the scheduling behavior of the bridge.
type Options struct {
	// QuietTime is the debounce applied after the last piece of bus
	// activity before a confirmation poll is issued.
	QuietTime time.Duration
	// PollInterval bounds how long the bridge goes without a poll.
	PollInterval time.Duration
	// CommandThrottle spaces consecutive outbound commands.
	CommandThrottle time.Duration
	// RefreshAtStart issues one poll immediately when the bridge starts.
	RefreshAtStart bool
}

func NewBridgeOptions() *Options {
	return &Options{
		QuietTime:       5 * time.Second,
		PollInterval:    90 * time.Second,
		CommandThrottle: 20 * time.Millisecond,
		RefreshAtStart:  true,
	}
}

func (o *Options) SetQuietTime(value time.Duration) *Options {
	o.QuietTime = value
	return o
}

func (o *Options) SetPollInterval(value time.Duration) *Options {
	o.PollInterval = value
	return o
}

func (o *Options) SetCommandThrottle(value time.Duration) *Options {
	o.CommandThrottle = value
	return o
}

func (o *Options) SetRefreshAtStart(value bool) *Options {
	o.RefreshAtStart = value
	return o
}

package bridge

import (
	"fmt"
	"time"
)

// LoadState is the externally visible state of one load. Brightness uses the
// 0-255 scale; Power is derived from it so that OFF always means brightness
// zero.
type LoadState struct {
	Id       int
	Name     string
	Area     string
	Dimmable bool

	Power      bool
	Brightness int
	// LastNonZero remembers the most recent nonzero brightness so that a
	// bare ON can restore it. Defaults to full brightness until a nonzero
	// level has been observed.
	LastNonZero int
}

// CommandKind defines the type of command being dispatched.
type CommandKind string

const (
	CommandSetPower      CommandKind = "setPower"
	CommandSetBrightness CommandKind = "setBrightness"
)

// PendingCommand is a single outbound directive for the throttle queue. For
// CommandSetPower the value is 0 (off) or 1 (on); for CommandSetBrightness it
// is a 0-255 brightness.
type PendingCommand struct {
	LoadId int
	Kind   CommandKind
	Value  int
}

// LoadLevel is one entry of a bulk state query against the driver, already
// converted to the 0-255 brightness scale.
type LoadLevel struct {
	Id         int
	Brightness int
}

// Driver is the narrow surface of the control bus the core writes to and
// polls from.
type Driver interface {
	// QueryAll fetches the brightness of every load. The result is complete
	// or the call fails.
	QueryAll() ([]LoadLevel, error)
	// SetBrightness issues exactly one command to the bus.
	SetBrightness(id int, brightness int) error
}

// EntityKind tags the addressable entity types the bridge announces.
type EntityKind string

const (
	EntityLoad   EntityKind = "light"
	EntityButton EntityKind = "button"
	EntityTask   EntityKind = "task"
)

// EntityRef identifies one addressable entity. Buttons are identified by
// their keypad and position, tasks and loads by their own id.
type EntityRef struct {
	Kind     EntityKind
	Id       int
	Position int
	Name     string
	Area     string
}

// TopicId is the identifier used in MQTT topics. Tasks get a prefixed id so
// they cannot collide with keypad station ids.
func (e EntityRef) TopicId() string {
	if e.Kind == EntityTask {
		return fmt.Sprintf("task_%d", e.Id)
	}
	return fmt.Sprint(e.Id)
}

func (e EntityRef) key() string {
	return fmt.Sprintf("%s/%d/%d", e.Kind, e.Id, e.Position)
}

// DiscoveryRecord marks the first observation of an entity.
type DiscoveryRecord struct {
	Entity      EntityRef
	FirstSeenAt time.Time
}

package vantage

// Load is one controllable output on the Vantage bus.
type Load struct {
	Id       int
	Name     string
	Area     string
	Dimmable bool
}

// Button is one physical keypad button, addressed on the event log by its
// VID.
type Button struct {
	Vid        int
	KeypadId   int
	Position   int
	KeypadName string
	Area       string
}

// KeypadButton is the VID to position mapping of a configured keypad.
type KeypadButton struct {
	Vid      int
	Position int
}

// Keypad is a wall-mounted button station.
type Keypad struct {
	Id      int
	Name    string
	Area    string
	Buttons []KeypadButton
}

// LoadLevel is one entry of a bulk state query. Level is the output level in
// percent (0-100) as reported by the controller.
type LoadLevel struct {
	Id    int
	Level float64
}

// EventType tags the variants of ActivityEvent.
type EventType string

const (
	// EventButton is a keypad button state change from the event log.
	EventButton EventType = "button"
	// EventTask is a task/scene execution marker from the event log.
	EventTask EventType = "task"
	// EventLoadStatus is a live load level report from status monitoring.
	EventLoadStatus EventType = "load"
)

// Action of a button or task transition.
type Action string

const (
	ActionPress   Action = "press"
	ActionRelease Action = "release"
)

// ActivityEvent is a typed event extracted from one diagnostic line. It is
// ephemeral: produced by the parser and consumed immediately.
type ActivityEvent struct {
	Type EventType
	Vid  int
	// Action is set for button and task events.
	Action Action
	// Level is set for load status events, in percent.
	Level float64
}

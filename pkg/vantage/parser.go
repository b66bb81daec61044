package vantage

import (
	"regexp"
	"strconv"
)

// The controller interleaves structured markers into its free-text event log.
// Two of them carry state we care about:
//
//	EL: 301 Button.GetState 1
//	EL: 205 Task.IsRunning 0
//
// Status monitoring additionally reports live load levels:
//
//	S:LOAD 118 75.0
//
// Everything else on the stream is noise.
var (
	eventLogRegex   = regexp.MustCompile(`EL:\s+(\d+)\s+([\w.]+)\s+(-?\d+)`)
	loadStatusRegex = regexp.MustCompile(`^S:LOAD\s+(\d+)\s+([0-9.]+)`)
)

const (
	methodButtonGetState = "Button.GetState"
	methodTaskIsRunning  = "Task.IsRunning"
)

// ParseLine extracts zero or one ActivityEvent from a raw diagnostic line.
// Unrecognized, truncated or malformed lines return nil; the parser never
// fails and keeps no state between calls.
func ParseLine(line string) *ActivityEvent {
	if match := eventLogRegex.FindStringSubmatch(line); match != nil {
		return parseEventLog(match)
	}
	if match := loadStatusRegex.FindStringSubmatch(line); match != nil {
		return parseLoadStatus(match)
	}
	return nil
}

func parseEventLog(match []string) *ActivityEvent {
	vid, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	value, err := strconv.Atoi(match[3])
	if err != nil {
		return nil
	}

	var action Action
	switch value {
	case 1:
		action = ActionPress
	case 0:
		action = ActionRelease
	default:
		return nil
	}

	switch match[2] {
	case methodButtonGetState:
		return &ActivityEvent{Type: EventButton, Vid: vid, Action: action}
	case methodTaskIsRunning:
		return &ActivityEvent{Type: EventTask, Vid: vid, Action: action}
	}
	return nil
}

func parseLoadStatus(match []string) *ActivityEvent {
	vid, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	level, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		return nil
	}
	if level < 0 {
		level = 0
	} else if level > 100 {
		level = 100
	}
	return &ActivityEvent{Type: EventLoadStatus, Vid: vid, Level: level}
}

package vantage

import (
	"errors"
	"fmt"
	"sort"
)

// Registry holds the object inventory of the installation. The host-command
// port carries no object database, so the inventory comes from the
// configuration and the registry only builds the lookup tables.
type Registry struct {
	loads   []Load
	keypads []Keypad

	loadsLookup   map[int]Load
	buttonsLookup map[int]Button
}

func NewRegistry(loads []Load, keypads []Keypad) *Registry {
	r := &Registry{
		loads:         loads,
		keypads:       keypads,
		loadsLookup:   map[int]Load{},
		buttonsLookup: map[int]Button{},
	}

	// Create lookup tables for fast access.
	for _, load := range loads {
		r.loadsLookup[load.Id] = load
	}
	for _, keypad := range keypads {
		for _, button := range keypad.Buttons {
			r.buttonsLookup[button.Vid] = Button{
				Vid:        button.Vid,
				KeypadId:   keypad.Id,
				Position:   button.Position,
				KeypadName: keypad.Name,
				Area:       keypad.Area,
			}
		}
	}

	sort.Slice(r.loads, func(i, j int) bool { return r.loads[i].Id < r.loads[j].Id })
	return r
}

func (r *Registry) Loads() []Load {
	return r.loads
}

func (r *Registry) Keypads() []Keypad {
	return r.keypads
}

func (r *Registry) LoadIds() []int {
	ids := make([]int, 0, len(r.loads))
	for _, load := range r.loads {
		ids = append(ids, load.Id)
	}
	return ids
}

func (r *Registry) GetLoad(id int) (Load, error) {
	load, ok := r.loadsLookup[id]
	if ok {
		return load, nil
	}
	return Load{}, errors.New("no load found with id " + fmt.Sprint(id))
}

// ResolveButton maps an event-log VID onto its keypad. VIDs outside the
// configured inventory still resolve so that unseen buttons can be promoted
// to entities: they keep their VID as both keypad id and position.
func (r *Registry) ResolveButton(vid int) (Button, bool) {
	button, ok := r.buttonsLookup[vid]
	if ok {
		return button, true
	}
	return Button{
		Vid:        vid,
		KeypadId:   vid,
		Position:   vid,
		KeypadName: fmt.Sprintf("Keypad %d", vid),
	}, false
}

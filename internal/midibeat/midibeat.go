// ABOUTME: MIDI beat output driven by the beat clock
// ABOUTME: Sends one note per beat with an accented note on beat 1
package midibeat

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
)

// General MIDI percussion notes on channel 10
const (
	DefaultChannel    = 9
	DefaultAccentNote = 76 // high wood block
	DefaultBeatNote   = 77 // low wood block

	accentVelocity = 127
	beatVelocity   = 90
)

// Sender transmits one MIDI message
type Sender func(midi.Message) error

// Out turns beat numbers into note messages. A beat of 0 silences the
// last note without sounding a new one.
type Out struct {
	mu      sync.Mutex
	send    Sender
	channel uint8
	accent  uint8
	note    uint8

	last     int
	playing  uint8
	sounding bool
}

// New creates an output on an already opened sender
func New(send Sender) *Out {
	return &Out{
		send:    send,
		channel: DefaultChannel,
		accent:  DefaultAccentNote,
		note:    DefaultBeatNote,
	}
}

// Open finds an output port whose name contains portName and opens it.
// A MIDI driver must be registered by the caller.
func Open(portName string) (*Out, error) {
	for _, port := range midi.GetOutPorts() {
		if !strings.Contains(strings.ToLower(port.String()), strings.ToLower(portName)) {
			continue
		}
		send, err := midi.SendTo(port)
		if err != nil {
			return nil, fmt.Errorf("open MIDI port %s: %w", port.String(), err)
		}
		log.Printf("MIDI beat output on %s", port.String())
		return New(send), nil
	}
	return nil, fmt.Errorf("no MIDI output port matching %q", portName)
}

// Ports lists the available output port names
func Ports() []string {
	var names []string
	for _, port := range midi.GetOutPorts() {
		names = append(names, port.String())
	}
	return names
}

// Beat sounds beat n of a cycle. Repeated calls with the same beat are
// ignored.
func (o *Out) Beat(n, cycle int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if n == o.last {
		return nil
	}
	o.last = n

	if err := o.release(); err != nil {
		return err
	}
	if n <= 0 || cycle <= 0 {
		return nil
	}

	note, velocity := o.note, uint8(beatVelocity)
	if n == 1 {
		note, velocity = o.accent, accentVelocity
	}
	if err := o.send(midi.NoteOn(o.channel, note, velocity)); err != nil {
		return fmt.Errorf("send beat %d: %w", n, err)
	}
	o.playing = note
	o.sounding = true
	return nil
}

// Close silences any sounding note
func (o *Out) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = 0
	return o.release()
}

func (o *Out) release() error {
	if !o.sounding {
		return nil
	}
	o.sounding = false
	if err := o.send(midi.NoteOff(o.channel, o.playing)); err != nil {
		return fmt.Errorf("release note %d: %w", o.playing, err)
	}
	return nil
}

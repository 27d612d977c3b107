// Package notify carries typed state-change notifications from the
// backend to its consumers (UI layers, tooling). Consumers receive
// messages over a channel; the backend never learns who is listening.
package notify

import (
	"github.com/lodestone-mc/lodestone/pkg/handle"
	"github.com/lodestone-mc/lodestone/pkg/instance"
)

// Message is a closed set of outbound notifications.
type Message interface {
	isMessage()
}

// InstanceAdded announces a newly registered instance.
type InstanceAdded struct {
	ID      handle.InstanceID
	Name    string
	Version string
	Loader  instance.Loader
	Root    string
}

// InstanceModified announces changed basic attributes of an instance.
type InstanceModified struct {
	ID      handle.InstanceID
	Name    string
	Version string
	Loader  instance.Loader
}

// InstanceRemoved announces an instance leaving the store.
type InstanceRemoved struct {
	ID handle.InstanceID
}

// LoadStateChanged announces a pipeline state transition.
type LoadStateChanged struct {
	ID       handle.InstanceID
	Resource instance.Resource
	State    instance.LoadState
}

// WorldsLoaded publishes a fresh world snapshot.
type WorldsLoaded struct {
	ID     handle.InstanceID
	Worlds []instance.WorldSummary
}

// ServersLoaded publishes a fresh server snapshot.
type ServersLoaded struct {
	ID      handle.InstanceID
	Servers []instance.ServerSummary
}

// ModsLoaded publishes a fresh mod snapshot.
type ModsLoaded struct {
	ID   handle.InstanceID
	Mods []instance.ModSummary
}

// Info is a user-visible informational notice.
type Info struct {
	Text string
}

// Error is a user-visible error notice. It never implies the backend
// stopped.
type Error struct {
	Text string
}

// Progress is a snapshot of a tracker's counters.
type Progress struct {
	Title    string
	Current  int64
	Total    int64
	Finished FinishType
	Failed   bool
}

func (InstanceAdded) isMessage()    {}
func (InstanceModified) isMessage() {}
func (InstanceRemoved) isMessage()  {}
func (LoadStateChanged) isMessage() {}
func (WorldsLoaded) isMessage()     {}
func (ServersLoaded) isMessage()    {}
func (ModsLoaded) isMessage()       {}
func (Info) isMessage()             {}
func (Error) isMessage()            {}
func (Progress) isMessage()         {}

// Sender fans messages out to a single consumer channel.
type Sender struct {
	ch chan Message
}

// NewSender creates a sender with the given channel capacity.
func NewSender(buffer int) *Sender {
	return &Sender{ch: make(chan Message, buffer)}
}

// Send delivers a message, blocking if the consumer is behind.
func (s *Sender) Send(m Message) {
	s.ch <- m
}

// SendError delivers a user-visible error notice.
func (s *Sender) SendError(text string) {
	s.Send(Error{Text: text})
}

// SendInfo delivers a user-visible informational notice.
func (s *Sender) SendInfo(text string) {
	s.Send(Info{Text: text})
}

// Messages is the consumer side.
func (s *Sender) Messages() <-chan Message {
	return s.ch
}

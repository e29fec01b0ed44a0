package core

// commandKind describes a request handled by the hub coordinator.
type commandKind int

const (
	commandJoin commandKind = iota
	commandLeave
	commandPublish
	commandMembers
)

// command is a single serialized request to the hub.
// reply is buffered so the coordinator never blocks on a caller that gave up.
type command struct {
	kind  commandKind
	room  string
	sub   Subscriber
	event Event
	reply chan int
}

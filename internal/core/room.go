package core

// Room groups subscribers of the same name. It is owned by the hub goroutine.
type Room struct {
	Name    string
	members map[string]Subscriber
}

// NewRoom constructs a room with no members.
func NewRoom(name string) *Room {
	return &Room{
		Name:    name,
		members: make(map[string]Subscriber),
	}
}

// Add inserts a subscriber into the room. Returns true if newly added.
func (r *Room) Add(s Subscriber) bool {
	if _, exists := r.members[s.ID()]; exists {
		return false
	}
	r.members[s.ID()] = s
	return true
}

// Remove deletes a subscriber from the room. Returns true if removed.
func (r *Room) Remove(s Subscriber) bool {
	if _, exists := r.members[s.ID()]; !exists {
		return false
	}
	delete(r.members, s.ID())
	return true
}

// Broadcast hands the event to every member and returns how many dropped it.
func (r *Room) Broadcast(event Event) int {
	dropped := 0
	for _, s := range r.members {
		if !s.Deliver(event) {
			dropped++
		}
	}
	return dropped
}

// Len returns the number of members.
func (r *Room) Len() int {
	return len(r.members)
}

// Empty returns true if no members are in the room.
func (r *Room) Empty() bool {
	return len(r.members) == 0
}

package realtime

// roomIndex maintains bidirectional membership between rooms and connections.
// Owned by the hub goroutine. A room with no members never persists: it is
// deleted as soon as its last member leaves.
type roomIndex struct {
	members map[string]map[string]struct{} // room id -> set of connection ids
	joined  map[string]map[string]struct{} // connection id -> set of room ids
}

func newRoomIndex() *roomIndex {
	return &roomIndex{
		members: make(map[string]map[string]struct{}),
		joined:  make(map[string]map[string]struct{}),
	}
}

// join adds the connection to the room, creating the room if absent.
// Idempotent: joining twice has no additional effect.
func (ri *roomIndex) join(connectionID, room string) {
	set, ok := ri.members[room]
	if !ok {
		set = make(map[string]struct{})
		ri.members[room] = set
	}
	set[connectionID] = struct{}{}

	rooms, ok := ri.joined[connectionID]
	if !ok {
		rooms = make(map[string]struct{})
		ri.joined[connectionID] = rooms
	}
	rooms[room] = struct{}{}
}

// leave removes the membership. Leaving a room one is not a member of is a
// no-op, never an error.
func (ri *roomIndex) leave(connectionID, room string) {
	if set, ok := ri.members[room]; ok {
		delete(set, connectionID)
		if len(set) == 0 {
			delete(ri.members, room)
		}
	}
	if rooms, ok := ri.joined[connectionID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(ri.joined, connectionID)
		}
	}
}

// leaveAll removes the connection from every room it belongs to. Used during
// connection teardown, before the queue is discarded, so no further room
// broadcast can target a dying connection.
func (ri *roomIndex) leaveAll(connectionID string) {
	for room := range ri.joined[connectionID] {
		if set, ok := ri.members[room]; ok {
			delete(set, connectionID)
			if len(set) == 0 {
				delete(ri.members, room)
			}
		}
	}
	delete(ri.joined, connectionID)
}

// membersOf returns a snapshot of the room's members. Unknown rooms yield an
// empty slice. The copy is what gives room broadcasts exact-membership
// semantics: mutations after the call do not affect an in-flight broadcast.
func (ri *roomIndex) membersOf(room string) []string {
	set, ok := ri.members[room]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (ri *roomIndex) count() int {
	return len(ri.members)
}

package domain

// RoomRelay mirrors local room broadcasts to other instances. Implementations
// must not block: the hub calls PublishRoom from its dispatch goroutine and
// expects fire-and-forget semantics.
type RoomRelay interface {
	PublishRoom(room string, message OutboundMessage)
}

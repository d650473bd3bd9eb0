package models

// BridgeMapping is the persistent record binding one Matrix room to one
// NetChat room. MessageCounter is the number of NetChat messages that
// have already been forwarded into the Matrix room; it only moves
// backwards when the NetChat room itself reports a smaller count.
type BridgeMapping struct {
	RoomName       string `json:"external_room_name"`
	RoomPassword   string `json:"external_room_password"`
	MessageCounter int    `json:"message_counter"`
}

// InboundMessage is one NetChat line on its way into a Matrix room. The
// content is already HTML-escaped and carries the bold timestamp markup.
type InboundMessage struct {
	RoomID  string
	Content string
}

// OutboundMessage is one Matrix message on its way into a NetChat room.
// Username is the resolved sender name (override or display name).
type OutboundMessage struct {
	RoomName     string
	RoomPassword string
	Username     string
	Body         string
}

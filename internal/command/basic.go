package command

import "context"

func (d *Dispatcher) handlePing(ctx context.Context, inv *Invocation) {
	d.replyPlain(ctx, inv.RoomID, Text("pong"))
}

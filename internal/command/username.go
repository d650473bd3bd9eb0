package command

import "context"

func (d *Dispatcher) handleUsername(ctx context.Context, inv *Invocation) {
	if len(inv.Args) < 1 {
		d.replyHTML(ctx, inv.RoomID, Text("missing_subcommand",
			"subcommands", "set/get/clear"))
		return
	}

	switch inv.Args[0] {
	case "set":
		if len(inv.Args) < 2 {
			d.replyHTML(ctx, inv.RoomID, Text("missing_arguments",
				"count", "1",
				"arguments", "set <name>"))
			return
		}
		if err := d.registry.SetUsername(ctx, inv.RoomID, inv.Sender, inv.Args[1]); err != nil {
			d.replyError(ctx, inv.RoomID, err)
			return
		}
		d.replyHTML(ctx, inv.RoomID, Text("username_set_successfully",
			"username", inv.Args[1]))

	case "get":
		name, ok, err := d.registry.GetUsername(ctx, inv.RoomID, inv.Sender)
		if err != nil {
			d.replyError(ctx, inv.RoomID, err)
			return
		}
		if !ok {
			d.replyPlain(ctx, inv.RoomID, Text("username_not_set"))
			return
		}
		d.replyHTML(ctx, inv.RoomID, Text("current_username", "username", name))

	case "clear":
		if err := d.registry.ClearUsername(ctx, inv.RoomID, inv.Sender); err != nil {
			d.replyError(ctx, inv.RoomID, err)
			return
		}
		d.replyPlain(ctx, inv.RoomID, Text("username_cleared_successfully"))
	}
}

package command

import (
	"context"
	"strconv"

	"netchatbridge/internal/permissions"
)

func (d *Dispatcher) handleBridge(ctx context.Context, inv *Invocation) {
	if len(inv.Args) < 1 {
		d.replyHTML(ctx, inv.RoomID, Text("missing_subcommand",
			"subcommands", "create/destroy/status"))
		return
	}

	switch inv.Args[0] {
	case "create":
		if len(inv.Args) < 3 {
			d.replyHTML(ctx, inv.RoomID, Text("missing_arguments",
				"count", "2",
				"arguments", "create <room_name> <room_password>"))
			return
		}
		if !d.checkPermission(ctx, inv, permissions.BridgeCreate) {
			return
		}
		d.createBridge(ctx, inv, inv.Args[1], inv.Args[2])

	case "destroy":
		if !d.checkPermission(ctx, inv, permissions.BridgeDestroy) {
			return
		}
		roomName, err := d.registry.Destroy(ctx, inv.RoomID)
		if err != nil {
			d.replyError(ctx, inv.RoomID, err)
			return
		}
		d.replyHTML(ctx, inv.RoomID, Text("room_successfully_unbridged",
			"room_name", roomName))

	case "status", "info", "information":
		mapping, err := d.registry.Status(ctx, inv.RoomID)
		if err != nil {
			d.replyError(ctx, inv.RoomID, err)
			return
		}
		d.replyHTML(ctx, inv.RoomID, Text("room_status",
			"room_name", mapping.RoomName,
			"room_message_count", strconv.Itoa(mapping.MessageCounter)))
	}
}

func (d *Dispatcher) createBridge(ctx context.Context, inv *Invocation, roomName, roomPassword string) {
	// Room validation can take a few round trips; show typing while it
	// runs.
	if err := d.client.SetTyping(ctx, inv.RoomID, true); err != nil {
		d.logger.WithError(err).Debug("Failed to set typing indicator")
	}
	defer func() {
		if err := d.client.SetTyping(ctx, inv.RoomID, false); err != nil {
			d.logger.WithError(err).Debug("Failed to clear typing indicator")
		}
	}()

	if err := d.registry.Create(ctx, inv.RoomID, roomName, roomPassword); err != nil {
		d.replyError(ctx, inv.RoomID, err)
		return
	}
	d.replyHTML(ctx, inv.RoomID, Text("room_successfully_bridged",
		"room_name", roomName))
}

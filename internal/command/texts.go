package command

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// All user-visible replies live here so wording stays in one place.
// Placeholders in {braces} are filled by Text.
var texts = map[string]string{
	"pong": "🏓 Pong!",

	"command_no_permissions":      "You do not have the permissions to use this command! This command requires power level <code>{minimum_power_level}</code>.",
	"fetch_permissions_failed":    "Uh oh! An error occurred while fetching your room permissions (<code>{error}</code>). For safety reasons, you have been denied access to use this command.",
	"missing_subcommand":          "You did not supply a subcommand! Available subcommands: {subcommands}.",
	"missing_arguments":           "You did not supply enough arguments! The command requires at least {count} arguments ({arguments}).",
	"database_error":              "Uh oh! Something went wrong while querying the database (<code>{error}</code>). Please try again later.",
	"database_possibly_corrupted": "Uh oh! The stored bridge record could not be read (<code>{error}</code>). The database may be corrupted; an operator needs to take a look.",
	"fetch_room_failed":           "Uh oh! An error occurred while fetching that NetChat room (<code>{error}</code>). Please try again later.",

	"room_currently_initializing": "Seems like that NetChat room is currently being initialized. Please try again in a few minutes.",
	"room_already_bridged":        "Hmm, seems like this room has already been bridged. You can use the destroy subcommand to unbridge this room and try again.",
	"room_wrong_password":         "Hmm, I can't seem to access that room, maybe the password you supplied is wrong?",
	"room_not_bridged":            "This room is not bridged to any NetChat room.",
	"room_successfully_bridged":   "Successfully bridged this room to <code>{room_name}</code>!",
	"room_successfully_unbridged": "Successfully unbridged this room from <code>{room_name}</code>.",
	"room_status":                 "This room is bridged to <code>{room_name}</code>. <code>{room_message_count}</code> messages have been forwarded so far.",

	"username_set_successfully":     "Your NetChat username is now <code>{username}</code>.",
	"username_cleared_successfully": "Your NetChat username override has been cleared; your display name will be used again.",
	"username_not_set":              "You have not set a NetChat username in this room.",
	"current_username":              "Your NetChat username in this room is <code>{username}</code>.",
}

// Text returns the reply template for key with the given {placeholder}
// replacements applied. A missing key is logged and echoed back so a
// broken reply is still visible in the room.
func Text(key string, replacements ...string) string {
	value, ok := texts[key]
	if !ok {
		logrus.WithField("key", key).Error("Missing reply text")
		return key
	}
	for i := 0; i+1 < len(replacements); i += 2 {
		value = strings.ReplaceAll(value, "{"+replacements[i]+"}", replacements[i+1])
	}
	return value
}

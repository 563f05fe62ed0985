// Package command recognizes chat commands and runs the inbound command loop.
package command

import "github.com/Iron-Ham/herobot/internal/chat"

// Recognized command texts. Matching is exact.
const (
	TextStatus = "/status"
	TextStop   = "/stop"
)

// Kind identifies a recognized command.
type Kind int

const (
	// Status asks for the summary of the watched directory.
	Status Kind = iota + 1
	// Stop asks the process to terminate.
	Stop
)

func (k Kind) String() string {
	switch k {
	case Status:
		return "status"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Command is a recognized inbound message.
type Command struct {
	Kind Kind
	// Message is the inbound message that carried the command; replies
	// are threaded under it.
	Message chat.Inbound
}

// Parse maps msg to a Command. Any text other than the exact command
// vocabulary is not a command.
func Parse(msg chat.Inbound) (Command, bool) {
	switch msg.Text {
	case TextStatus:
		return Command{Kind: Status, Message: msg}, true
	case TextStop:
		return Command{Kind: Stop, Message: msg}, true
	default:
		return Command{}, false
	}
}

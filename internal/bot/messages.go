// Package bot is the messaging surface: it receives inbound chat messages,
// routes them through the wizard and the services, and produces replies.
//
// The router is transport-agnostic and works on the small message types in
// this file; the telegram adapter translates between these and the concrete
// update/send types of the Bot API.
package bot

// MessageKind distinguishes the shapes of inbound messages the router cares
// about.
type MessageKind int

const (
	// KindText is a plain text message, possibly a command.
	KindText MessageKind = iota
	// KindMedia is a message carrying a photo attachment.
	KindMedia
)

// IncomingMessage is one normalized inbound chat message.
type IncomingMessage struct {
	// Sender is the stable identifier of the message author.
	Sender string
	// Username is the author's display handle, may be empty.
	Username string
	// TelegramID is the numeric transport-level account ID, used for
	// moderator identification.
	TelegramID int64
	// ChatID is the chat the message arrived in; replies go back there. It
	// differs from the sender's ID in group chats.
	ChatID int64
	// Text is the message text or command.
	Text string
	// MediaRef references the attached photo when Kind is KindMedia.
	MediaRef string
	// Kind tells the router how to interpret the message.
	Kind MessageKind
}

// OutgoingReply is the router's answer to one inbound message.
type OutgoingReply struct {
	// Text is the reply body.
	Text string
	// Attachments are photo references to send alongside the text.
	Attachments []string
}

package chat

// Command is an inbound event already validated at the transport boundary.
// Each command is scoped to the session that produced it.
type Command interface {
	Session() SessionID
}

type ClaimNameCommand struct {
	SessionID     SessionID
	RequestedName string
}

type PostMessageCommand struct {
	SessionID SessionID
	Text      string
}

type TypingCommand struct {
	SessionID SessionID
}

type StopTypingCommand struct {
	SessionID SessionID
}

// DisconnectCommand covers both an explicit leave and a transport close.
type DisconnectCommand struct {
	SessionID SessionID
}

func (c ClaimNameCommand) Session() SessionID   { return c.SessionID }
func (c PostMessageCommand) Session() SessionID { return c.SessionID }
func (c TypingCommand) Session() SessionID      { return c.SessionID }
func (c StopTypingCommand) Session() SessionID  { return c.SessionID }
func (c DisconnectCommand) Session() SessionID  { return c.SessionID }

// Package console is the interactive terminal front end of the chat client.
package console

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"

	"wschat/internal/history"
	"wschat/internal/logging"
	"wschat/internal/session"
	"wschat/internal/wire"
)

var clog = logging.For("console")

// Chat is the part of a session the console drives.
type Chat interface {
	SendChat(scope wire.Scope, to, text string) error
	JoinGroups(groups ...string) error
	LeaveGroups(groups ...string) error
	Identity() string
	ClientID() (uint32, bool)
}

// History is the read side of the local message log.
type History interface {
	Recent(conversation string, n int) ([]history.Record, error)
	Conversations() ([]string, error)
	ConversationFor(identity string) string
}

// Console reads command lines from a terminal and prints inbound traffic.
type Console struct {
	term     *term.Terminal
	chat     Chat
	history  History
	commands *CommandRegistry
}

// New returns a console on rw with the builtin commands registered. hist
// may be nil.
func New(rw io.ReadWriter, chat Chat, hist History) *Console {
	c := &Console{
		term:     term.NewTerminal(rw, "> "),
		chat:     chat,
		history:  hist,
		commands: NewCommandRegistry(),
	}
	c.commands.RegisterBuiltins()
	return c
}

// Terminal returns the underlying terminal. Writes through it do not tear
// the prompt line.
func (c *Console) Terminal() *term.Terminal {
	return c.term
}

// Commands returns the registry so callers can add commands before Run.
func (c *Console) Commands() *CommandRegistry {
	return c.commands
}

// SetPrompt shows identity in the prompt.
func (c *Console) SetPrompt(identity string) {
	c.term.SetPrompt(fmt.Sprintf("[%s]> ", identity))
}

// Run reads lines until /quit or the input ends. Lines starting with a
// slash are commands; anything else is "<to> <text>".
func (c *Console) Run() error {
	c.commands.Freeze()
	_, _ = fmt.Fprintln(c.term, "Type /help for commands.")
	for {
		line, err := c.term.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if c.commands.Dispatch(line, c.chat, c.history, c.term) {
				return nil
			}
			continue
		}
		to, text, ok := strings.Cut(line, " ")
		text = strings.TrimSpace(text)
		if !ok || text == "" {
			_, _ = fmt.Fprintln(c.term, "Usage: <to> <text> (try /help)")
			continue
		}
		sendChat(CommandContext{Chat: c.chat, Terminal: c.term}, wire.ScopeClient, to, text)
	}
}

// ShowFrame prints an inbound frame. It is meant to be registered as the
// session's message handler.
func (c *Console) ShowFrame(f *wire.Frame) {
	switch f.Header.MsgType {
	case wire.MsgTypeChat:
		msg, err := wire.DecodeChatMessage(f.Buffer())
		if err != nil {
			clog.Warn("undecodable chat payload", "header", f.Header, "err", err)
			return
		}
		switch f.Header.Scope {
		case wire.ScopeGroup:
			_, _ = fmt.Fprintf(c.term, "[group %d] %s: %s\r\n", f.Header.To, msg.From, msg.Text)
		case wire.ScopeBroadcast:
			_, _ = fmt.Fprintf(c.term, "[all] %s: %s\r\n", msg.From, msg.Text)
		default:
			_, _ = fmt.Fprintf(c.term, "[%s] %s\r\n", msg.From, msg.Text)
		}
	case wire.MsgTypeOfflineNotice:
		n, err := wire.DecodeOfflineNotice(f.Buffer())
		if err != nil {
			clog.Warn("undecodable offline notice", "err", err)
			return
		}
		_, _ = fmt.Fprintf(c.term, "* %s is offline\r\n", n.PeerID)
	case wire.MsgTypeLoginAck:
		if id, ok := c.chat.ClientID(); ok {
			_, _ = fmt.Fprintf(c.term, "* logged in as %s (client id %d)\r\n", c.chat.Identity(), id)
		}
	case wire.MsgTypeGroupInOut:
		g, err := wire.DecodeGroupInOut(f.Buffer())
		if err != nil {
			clog.Warn("undecodable group change", "err", err)
			return
		}
		verb := "left"
		if g.Join {
			verb = "joined"
		}
		_, _ = fmt.Fprintf(c.term, "* %s %s\r\n", verb, strings.Join(g.Groups, ", "))
	default:
		clog.Debug("unhandled frame", "header", f.Header)
	}
}

// ShowError prints a session error. Kicks and login rejections get their
// own wording.
func (c *Console) ShowError(err error) {
	var le *session.LoginError
	switch {
	case errors.As(err, &le):
		_, _ = fmt.Fprintf(c.term, "! login rejected: %s\r\n", le.Reason)
	case errors.Is(err, session.ErrKicked):
		_, _ = fmt.Fprintln(c.term, "! logged in from another location")
	default:
		_, _ = fmt.Fprintf(c.term, "! %v\r\n", err)
	}
}

package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"

	"wschat/internal/wire"
)

const defaultHistoryLines = 20

// CommandContext holds the state available to command handlers.
type CommandContext struct {
	Chat     Chat
	History  History // nil when history is disabled
	Terminal *term.Terminal
	Args     []string
}

// CommandHandler runs a console command. Returns true if the console should
// exit (e.g., /quit).
type CommandHandler func(ctx CommandContext) bool

// Command describes a registered console command.
type Command struct {
	Usage   string // full usage for help (e.g., "/join <group>..."); defaults to command name
	Help    string
	Handler CommandHandler
}

// CommandRegistry maps command names to handlers and produces dynamic help.
// Once frozen (via Freeze), no new commands can be registered.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[string]Command
	order    []string // insertion order for stable help output
	frozen   bool
}

// NewCommandRegistry creates an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]Command),
	}
}

// Register adds a command to the registry. The name includes the leading
// slash. Registering the same name twice overwrites the previous entry.
// Panics if cmd.Handler is nil or if the registry is frozen.
func (r *CommandRegistry) Register(name string, cmd Command) {
	if cmd.Handler == nil {
		panic("console: Register called with nil handler for " + name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("console: Register called on frozen registry for " + name)
	}
	if _, exists := r.commands[name]; !exists {
		r.order = append(r.order, name)
	}
	r.commands[name] = cmd
}

// Freeze prevents further command registration. Console.Run calls it.
func (r *CommandRegistry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Dispatch parses a command line and calls the matching handler.
// Returns true if the console should exit.
func (r *CommandRegistry) Dispatch(line string, chat Chat, hist History, terminal *term.Terminal) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	name := parts[0]

	r.mu.RLock()
	cmd, ok := r.commands[name]
	r.mu.RUnlock()

	if !ok {
		_, _ = fmt.Fprintf(terminal, "Unknown command: %s (try /help)\r\n", name)
		return false
	}

	return cmd.Handler(CommandContext{
		Chat:     chat,
		History:  hist,
		Terminal: terminal,
		Args:     parts[1:],
	})
}

// HelpText lists all registered commands in registration order.
func (r *CommandRegistry) HelpText() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range r.order {
		cmd := r.commands[name]
		display := name
		if cmd.Usage != "" {
			display = cmd.Usage
		}
		_, _ = fmt.Fprintf(&b, "  %-24s %s\n", display, cmd.Help)
	}
	b.WriteString("  <to> <text>              send a direct message\n")
	return b.String()
}

// RegisterBuiltins registers the chat commands.
func (r *CommandRegistry) RegisterBuiltins() {
	r.Register("/msg", Command{
		Usage: "/msg <to> <text>",
		Help:  "send a direct message",
		Handler: func(ctx CommandContext) bool {
			if len(ctx.Args) < 2 {
				_, _ = fmt.Fprintln(ctx.Terminal, "Usage: /msg <to> <text>")
				return false
			}
			sendChat(ctx, wire.ScopeClient, ctx.Args[0], strings.Join(ctx.Args[1:], " "))
			return false
		},
	})

	r.Register("/group", Command{
		Usage: "/group <group> <text>",
		Help:  "send to a group",
		Handler: func(ctx CommandContext) bool {
			if len(ctx.Args) < 2 {
				_, _ = fmt.Fprintln(ctx.Terminal, "Usage: /group <group> <text>")
				return false
			}
			sendChat(ctx, wire.ScopeGroup, ctx.Args[0], strings.Join(ctx.Args[1:], " "))
			return false
		},
	})

	r.Register("/all", Command{
		Usage: "/all <text>",
		Help:  "send to everyone",
		Handler: func(ctx CommandContext) bool {
			if len(ctx.Args) == 0 {
				_, _ = fmt.Fprintln(ctx.Terminal, "Usage: /all <text>")
				return false
			}
			sendChat(ctx, wire.ScopeBroadcast, "", strings.Join(ctx.Args, " "))
			return false
		},
	})

	r.Register("/join", Command{
		Usage: "/join <group>...",
		Help:  "join groups",
		Handler: func(ctx CommandContext) bool {
			if len(ctx.Args) == 0 {
				_, _ = fmt.Fprintln(ctx.Terminal, "Usage: /join <group>...")
				return false
			}
			if err := ctx.Chat.JoinGroups(ctx.Args...); err != nil {
				_, _ = fmt.Fprintf(ctx.Terminal, "! join failed: %v\r\n", err)
			}
			return false
		},
	})

	r.Register("/leave", Command{
		Usage: "/leave <group>...",
		Help:  "leave groups",
		Handler: func(ctx CommandContext) bool {
			if len(ctx.Args) == 0 {
				_, _ = fmt.Fprintln(ctx.Terminal, "Usage: /leave <group>...")
				return false
			}
			if err := ctx.Chat.LeaveGroups(ctx.Args...); err != nil {
				_, _ = fmt.Fprintf(ctx.Terminal, "! leave failed: %v\r\n", err)
			}
			return false
		},
	})

	r.Register("/history", Command{
		Usage: "/history <conversation> [n]",
		Help:  "show recent messages (e.g. 2, group:7, broadcast)",
		Handler: func(ctx CommandContext) bool {
			showHistory(ctx)
			return false
		},
	})

	r.Register("/whoami", Command{
		Help: "show your identity and client id",
		Handler: func(ctx CommandContext) bool {
			id := ctx.Chat.Identity()
			if id == "" {
				_, _ = fmt.Fprintln(ctx.Terminal, "Not logged in.")
				return false
			}
			if cid, ok := ctx.Chat.ClientID(); ok {
				_, _ = fmt.Fprintf(ctx.Terminal, "%s (client id %d)\r\n", id, cid)
			} else {
				_, _ = fmt.Fprintf(ctx.Terminal, "%s (awaiting login ack)\r\n", id)
			}
			return false
		},
	})

	r.Register("/quit", Command{
		Help: "disconnect",
		Handler: func(ctx CommandContext) bool {
			_, _ = fmt.Fprintln(ctx.Terminal, "Goodbye.")
			return true
		},
	})

	r.Register("/help", Command{
		Help: "show this help",
		Handler: func(ctx CommandContext) bool {
			_, _ = fmt.Fprint(ctx.Terminal, r.HelpText())
			return false
		},
	})
}

func sendChat(ctx CommandContext, scope wire.Scope, to, text string) {
	err := ctx.Chat.SendChat(scope, to, text)
	switch {
	case err == nil:
	case errors.Is(err, wire.ErrIdentifier):
		_, _ = fmt.Fprintf(ctx.Terminal, "! bad recipient %q: %v\r\n", to, err)
	default:
		_, _ = fmt.Fprintf(ctx.Terminal, "! send failed: %v\r\n", err)
	}
}

func showHistory(ctx CommandContext) {
	if ctx.History == nil {
		_, _ = fmt.Fprintln(ctx.Terminal, "History is disabled.")
		return
	}
	if len(ctx.Args) == 0 {
		convs, err := ctx.History.Conversations()
		if err != nil {
			_, _ = fmt.Fprintf(ctx.Terminal, "! history: %v\r\n", err)
			return
		}
		_, _ = fmt.Fprintf(ctx.Terminal, "Conversations (%d): %s\r\n", len(convs), strings.Join(convs, ", "))
		return
	}

	conv := conversationKey(ctx.History, ctx.Args[0])
	n := defaultHistoryLines
	if len(ctx.Args) > 1 {
		v, err := strconv.Atoi(ctx.Args[1])
		if err != nil || v <= 0 {
			_, _ = fmt.Fprintln(ctx.Terminal, "Usage: /history <conversation> [n]")
			return
		}
		n = v
	}

	recs, err := ctx.History.Recent(conv, n)
	if err != nil {
		_, _ = fmt.Fprintf(ctx.Terminal, "! history: %v\r\n", err)
		return
	}
	if len(recs) == 0 {
		_, _ = fmt.Fprintf(ctx.Terminal, "No messages in %s.\r\n", conv)
		return
	}
	for _, rec := range recs {
		_, _ = fmt.Fprintf(ctx.Terminal, "%s %s %s: %s\r\n",
			rec.At.Format("2006-01-02 15:04:05"), rec.Direction, rec.From, rec.Text)
	}
}

// conversationKey accepts a bare peer identity as shorthand for its direct
// conversation.
func conversationKey(h History, arg string) string {
	if arg == "broadcast" || strings.Contains(arg, ":") {
		return arg
	}
	return h.ConversationFor(arg)
}

package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"support-flow/client"
	"support-flow/domain"
	"support-flow/errors"
	"support-flow/internal"
	"support-flow/services"
	"sync"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

var errQuit = fmt.Errorf("quit")

const usage = `commands:
  signup <email> <password>   create an account and sign in
  signin <email> <password>   sign in
  signout                     sign out
  open [customer-id]          open a conversation (customers always open their own)
  type <text>                 update the draft, empty text stops typing
  send                        send the draft
  say <text>                  type and send in one go
  delete <message-id>         remove a message (agent only), the id prefix is enough
  queue                       list conversations by recency (agent only)
  search <term>               search customer handles (agent only)
  view                        print the open conversation
  quit`

// Repl drives one client process from line commands.
type Repl struct {
	log      *slog.Logger
	desk     *internal.Desk
	identity *services.IdentityProvider
	out      io.Writer

	mu      sync.Mutex
	client  *client.Client
	shown   map[uuid.UUID]bool
	typing  bool
	stopped func()
}

func NewRepl(ctx context.Context, log *slog.Logger, desk *internal.Desk, out io.Writer) *Repl {
	r := &Repl{
		log:      log,
		desk:     desk,
		identity: desk.NewIdentityProvider(),
		out:      out,
	}
	r.stopped = r.identity.OnSessionChange(func(session *domain.Session) {
		r.switchSession(ctx, session)
	})
	return r
}

// Run reads commands until EOF, quit or ctx is done.
func (r *Repl) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	r.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := r.Execute(ctx, line)
			if stderrors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				r.printf("%s\n", color.Red.Sprintf("error: %v", err))
			}
			r.prompt()
		}
	}
}

// Execute runs one command line.
func (r *Repl) Execute(ctx context.Context, line string) error {
	command, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	args := strings.Fields(rest)
	switch command {
	case "":
		return nil
	case "help":
		r.printf("%s\n", usage)
		return nil
	case "quit", "exit":
		return errQuit
	case "signup", "signin":
		if len(args) != 2 {
			return fmt.Errorf("%w: %s <email> <password>", errors.ErrValidation, command)
		}
		credential := services.Credential{Email: args[0], Password: args[1]}
		var err error
		if command == "signup" {
			_, err = r.identity.SignUp(credential)
		} else {
			_, err = r.identity.SignIn(credential)
		}
		return err
	case "signout":
		r.identity.SignOut()
		return nil
	}

	current, err := r.current()
	if err != nil {
		return err
	}
	switch command {
	case "open":
		target := domain.UserID("")
		if len(args) > 0 {
			target = domain.UserID(args[0])
		}
		if err = current.Open(ctx, target); err != nil {
			return err
		}
		r.printView(current.View())
		return nil
	case "type":
		return current.Input(ctx, rest)
	case "say":
		if err = current.Input(ctx, rest); err != nil {
			return err
		}
		_, err = current.Send(ctx)
		return err
	case "send":
		_, err = current.Send(ctx)
		return err
	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("%w: delete <message-id>", errors.ErrValidation)
		}
		id, err := resolveMessage(current.View(), args[0])
		if err != nil {
			return err
		}
		return current.Delete(ctx, id)
	case "queue":
		entries, err := r.desk.Queue.List(ctx, current.View().Session.UserID)
		if err != nil {
			return err
		}
		r.printQueue(entries)
		return nil
	case "search":
		entries, err := r.desk.Queue.Search(ctx, current.View().Session.UserID, rest)
		if err != nil {
			return err
		}
		r.printQueue(entries)
		return nil
	case "view":
		r.printView(current.View())
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q, try help", errors.ErrValidation, command)
	}
}

func (r *Repl) Close() {
	r.stopped()
	r.identity.SignOut()
}

func (r *Repl) current() (*client.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil, errors.ErrNoSession
	}
	return r.client, nil
}

// switchSession replaces the client whenever the identity changes.
func (r *Repl) switchSession(ctx context.Context, session *domain.Session) {
	r.mu.Lock()
	previous := r.client
	r.client = nil
	r.shown = map[uuid.UUID]bool{}
	r.typing = false
	r.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	if session == nil {
		return
	}
	next, err := r.desk.NewClient(ctx, *session)
	if err != nil {
		r.log.Error("Client start failed", "user_id", session.UserID, "error", err)
		return
	}
	next.OnChange(r.onChange)

	r.mu.Lock()
	r.client = next
	r.mu.Unlock()
	r.printf("%s\n", color.Green.Sprintf("signed in as %s (%s, id %s)", session.Handle, session.Role, session.UserID))
}

// onChange runs on the client loop: it only prints.
func (r *Repl) onChange(view client.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range view.Messages {
		if r.shown[m.ID] {
			continue
		}
		r.shown[m.ID] = true
		if m.SenderID != view.Session.UserID {
			fmt.Fprintln(r.out, formatMessage(view.Session.UserID, m))
		}
	}
	if view.CounterpartTyping != r.typing {
		r.typing = view.CounterpartTyping
		if r.typing {
			fmt.Fprintln(r.out, color.Gray.Sprintf("%s is typing...", view.Counterpart))
		}
	}
}

func (r *Repl) printView(view client.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, color.Cyan.Sprintf("--- conversation %s ---", view.Conversation))
	for _, m := range view.Messages {
		r.shown[m.ID] = true
		fmt.Fprintln(r.out, formatMessage(view.Session.UserID, m))
	}
	if view.CounterpartTyping {
		fmt.Fprintln(r.out, color.Gray.Sprintf("%s is typing...", view.Counterpart))
	}
	if view.Draft != "" {
		fmt.Fprintf(r.out, "draft: %s\n", view.Draft)
	}
}

func (r *Repl) printQueue(entries []services.QueueEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"Customer", "Handle", "Last active", "Typing"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding("\t")
	for _, entry := range entries {
		typing := ""
		if entry.Typing {
			typing = "typing..."
		}
		table.Append([]string{
			string(entry.Conversation.ID),
			entry.Conversation.Handle,
			entry.Conversation.LastActive.Local().Format("2006-01-02 15:04:05"),
			typing,
		})
	}
	table.Render()
}

func (r *Repl) prompt() {
	r.printf("%s", color.Bold.Sprint("> "))
}

func (r *Repl) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func formatMessage(self domain.UserID, m domain.Message) string {
	who := string(m.SenderID)
	if m.SenderID == self {
		who = "me"
	}
	return fmt.Sprintf("[%s] %s %s: %s", m.CreatedAt.Local().Format("15:04:05"),
		color.Yellow.Sprint(m.ID.String()[:8]), who, m.Body)
}

// resolveMessage accepts a full id or the short prefix printed next to a message.
func resolveMessage(view client.View, ref string) (uuid.UUID, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}
	matches := lo.Filter(view.Messages, func(m domain.Message, _ int) bool {
		return strings.HasPrefix(m.ID.String(), ref)
	})
	switch len(matches) {
	case 0:
		return uuid.Nil, fmt.Errorf("%w: no message %q in this conversation", errors.ErrNotFound, ref)
	case 1:
		return matches[0].ID, nil
	default:
		return uuid.Nil, fmt.Errorf("%w: %q matches %d messages", errors.ErrValidation, ref, len(matches))
	}
}

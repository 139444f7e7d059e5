package console

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Output receives reply lines for the issuing operator.
type Output interface {
	Send(line string)
}

// HandlerFunc runs a command. args excludes the command name.
type HandlerFunc func(ctx context.Context, out Output, args []string) error

type command struct {
	name    string
	usage   string
	summary string
	fn      HandlerFunc
}

// Registry maps command names to handlers.
type Registry struct {
	commands  map[string]*command
	followups []func() bool
	log       *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	reg := &Registry{
		commands: make(map[string]*command),
		log:      log,
	}
	reg.Register("help", "help", "list commands", reg.help)
	return reg
}

// Register adds a command. usage is shown by help, e.g. "world_load <name>".
func (reg *Registry) Register(name, usage, summary string, fn HandlerFunc) {
	reg.commands[strings.ToLower(name)] = &command{
		name:    name,
		usage:   usage,
		summary: summary,
		fn:      fn,
	}
}

// Names returns the registered command names, sorted.
func (reg *Registry) Names() []string {
	names := make([]string, 0, len(reg.commands))
	for name := range reg.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch parses line and runs the matching command. Errors are logged and
// echoed to out before being returned. Blank lines are ignored.
func (reg *Registry) Dispatch(ctx context.Context, out Output, line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	name := strings.ToLower(parts[0])
	cmd, ok := reg.commands[name]
	if !ok {
		out.Send(fmt.Sprintf("unknown command %q (try help)", name))
		return fmt.Errorf("unknown command %q", name)
	}

	reg.log.Debug("console command", zap.String("cmd", name), zap.Strings("args", parts[1:]))
	if err := reg.safeCall(ctx, cmd, out, parts[1:]); err != nil {
		reg.log.Warn("console command failed", zap.String("cmd", name), zap.Error(err))
		out.Send("error: " + err.Error())
		return err
	}
	return nil
}

// After schedules fn to run on every Poll until it returns true. Handlers use
// it to report work that finishes on a later tick.
func (reg *Registry) After(fn func() bool) {
	reg.followups = append(reg.followups, fn)
}

// Poll runs pending follow-ups. Called from the game loop once per tick.
func (reg *Registry) Poll() {
	kept := reg.followups[:0]
	for _, fn := range reg.followups {
		if !fn() {
			kept = append(kept, fn)
		}
	}
	clear(reg.followups[len(kept):])
	reg.followups = kept
}

// safeCall executes a handler with panic recovery so a bad command never
// takes down the game loop.
func (reg *Registry) safeCall(ctx context.Context, cmd *command, out Output, args []string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("console handler panic recovered",
				zap.String("cmd", cmd.name),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("command %s panicked: %v", cmd.name, rec)
		}
	}()
	return cmd.fn(ctx, out, args)
}

func (reg *Registry) help(_ context.Context, out Output, _ []string) error {
	for _, name := range reg.Names() {
		cmd := reg.commands[name]
		out.Send(fmt.Sprintf("%-40s %s", cmd.usage, cmd.summary))
	}
	return nil
}

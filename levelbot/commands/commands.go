// Package commands maps command names to handlers. Handlers are plain
// functions of their dependencies and input; the gateway adapter lives in
// package handlers.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/disgoorg/disgo/discord"

	"github.com/disgoorg/levelbot/levelbot/activity"
	"github.com/disgoorg/levelbot/levelbot/challenges"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
	"github.com/disgoorg/levelbot/levelbot/events"
	"github.com/disgoorg/levelbot/levelbot/leaderboard"
	"github.com/disgoorg/levelbot/levelbot/multiplier"
	"github.com/disgoorg/levelbot/levelbot/settings"
)

var (
	ErrNotAuthorized  = errors.New("you need the Manage Server permission to use this command")
	ErrUnknownCommand = errors.New("unknown command")
)

const ColorDefault = 0x5865F2

// UserError is shown to the caller as is.
type UserError string

func (e UserError) Error() string {
	return string(e)
}

func userErrorf(format string, args ...any) error {
	return UserError(fmt.Sprintf(format, args...))
}

type Deps struct {
	Stores     *repositories.Stores
	Settings   *settings.Settings
	Resolver   *multiplier.Resolver
	Events     *events.Manager
	Challenges *challenges.Tracker
	Board      *leaderboard.Board
	Activity   *activity.Pipeline
	Loc        *time.Location

	// Now is replaced by tests.
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Deps) location() *time.Location {
	if d.Loc == nil {
		return time.UTC
	}
	return d.Loc
}

type UserRef struct {
	ID   string
	Name string
}

type RoleRef struct {
	ID   string
	Name string
}

type ChannelRef struct {
	ID   string
	Name string
}

// Input is one invocation. Options hold string, int64, float64, bool,
// UserRef, RoleRef or ChannelRef values keyed by option name.
type Input struct {
	UserID      string
	DisplayName string
	ChannelID   string
	Roles       []string
	Admin       bool
	Subcommand  string
	Options     map[string]any
}

func opt[T any](in Input, name string) (T, bool) {
	v, ok := in.Options[name].(T)
	return v, ok
}

func (in Input) String(name string) string {
	s, _ := opt[string](in, name)
	return s
}

func (in Input) Int(name string) (int64, bool) {
	return opt[int64](in, name)
}

func (in Input) Float(name string) (float64, bool) {
	return opt[float64](in, name)
}

func (in Input) Bool(name string) (bool, bool) {
	return opt[bool](in, name)
}

func (in Input) User(name string) (UserRef, bool) {
	return opt[UserRef](in, name)
}

func (in Input) Role(name string) (RoleRef, bool) {
	return opt[RoleRef](in, name)
}

func (in Input) Channel(name string) (ChannelRef, bool) {
	return opt[ChannelRef](in, name)
}

// Target returns the user option or the caller.
func (in Input) Target(name string) UserRef {
	if u, ok := in.User(name); ok {
		return u
	}
	return UserRef{ID: in.UserID, Name: in.DisplayName}
}

// Reply is rendered by the adapter. More than one page is sent through the
// paginator.
type Reply struct {
	Content   string
	Embeds    []discord.Embed
	Pages     []discord.Embed
	Ephemeral bool
}

func text(format string, args ...any) Reply {
	return Reply{Content: fmt.Sprintf(format, args...)}
}

func private(format string, args ...any) Reply {
	return Reply{Content: fmt.Sprintf(format, args...), Ephemeral: true}
}

func embed(e *discord.EmbedBuilder) Reply {
	return Reply{Embeds: []discord.Embed{e.Build()}}
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

func roleMention(roleID string) string {
	return "<@&" + roleID + ">"
}

func channelMention(channelID string) string {
	return "<#" + channelID + ">"
}

// timestamp renders t as a client-localized timestamp in the given style.
func timestamp(t time.Time, style string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}

type Handler func(ctx context.Context, d *Deps, in Input) (Reply, error)

type Command struct {
	Name        string
	Description string
	Admin       bool
	Handle      Handler
}

var table = map[string]Command{}

func register(cmds ...Command) {
	for _, c := range cmds {
		if _, ok := table[c.Name]; ok {
			panic("duplicate command " + c.Name)
		}
		table[c.Name] = c
	}
}

// Key joins a command and subcommand name the way the table stores them.
func Key(name, subcommand string) string {
	if subcommand == "" {
		return name
	}
	return name + " " + subcommand
}

func Lookup(key string) (Command, bool) {
	c, ok := table[key]
	return c, ok
}

// All returns every registered command sorted by name.
func All() []Command {
	cmds := make([]Command, 0, len(table))
	for _, c := range table {
		cmds = append(cmds, c)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Dispatch runs the command registered under name and in.Subcommand.
func Dispatch(ctx context.Context, d *Deps, name string, in Input) (Reply, error) {
	cmd, ok := table[Key(name, in.Subcommand)]
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s", ErrUnknownCommand, Key(name, in.Subcommand))
	}
	if cmd.Admin && !in.Admin {
		return Reply{}, ErrNotAuthorized
	}
	if in.Options == nil {
		in.Options = map[string]any{}
	}
	return cmd.Handle(ctx, d, in)
}

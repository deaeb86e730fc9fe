// Package handlers adapts disgo interactions and gateway events to the
// command table and the activity pipeline.
package handlers

import (
	"context"
	"errors"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"github.com/disgoorg/snowflake/v2"

	"github.com/disgoorg/levelbot/levelbot/commands"
)

const genericFailure = "Something went wrong while running this command. Please try again later."

// Register routes every slash command in commands.Definitions through
// Dispatch.
func Register(r handler.Router, deps *commands.Deps, pages *paginator.Manager) {
	for _, def := range commands.Definitions() {
		name := def.CommandName()
		r.Command("/"+name, WrapWithLogging(name, slashHandler(name, deps, pages)))
	}
}

func slashHandler(name string, deps *commands.Deps, pages *paginator.Manager) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		in := newInput(e.User(), e.Member(), e.ChannelID(), e.SlashCommandInteractionData())
		reply, err := commands.Dispatch(ctx, deps, name, in)
		if err != nil {
			reply, err = failure(err)
			if sendErr := e.CreateMessage(message(reply)); sendErr != nil {
				return errors.Join(err, sendErr)
			}
			return err
		}

		if len(reply.Pages) > 1 {
			return pages.Create(e.Respond, paginator.Pages{
				ID:      e.ID().String(),
				Creator: e.User().ID,
				PageFunc: func(page int, embed *discord.EmbedBuilder) {
					embed.Embed = reply.Pages[page]
				},
				Pages:      len(reply.Pages),
				ExpireMode: paginator.ExpireModeAfterLastUsage,
			}, reply.Ephemeral)
		}
		return e.CreateMessage(message(reply))
	}
}

// failure turns a command error into the reply shown to the caller. The
// returned error is nil when the failure was the caller's.
func failure(err error) (commands.Reply, error) {
	var userErr commands.UserError
	switch {
	case errors.As(err, &userErr):
		return commands.Reply{Content: userErr.Error(), Ephemeral: true}, nil
	case errors.Is(err, commands.ErrNotAuthorized):
		return commands.Reply{Content: "You need the Manage Server permission to use this command.", Ephemeral: true}, nil
	default:
		return commands.Reply{Content: genericFailure, Ephemeral: true}, err
	}
}

func message(reply commands.Reply) discord.MessageCreate {
	embeds := reply.Embeds
	if len(embeds) == 0 && len(reply.Pages) == 1 {
		embeds = reply.Pages
	}
	msg := discord.MessageCreate{
		Content: reply.Content,
		Embeds:  embeds,
	}
	if reply.Ephemeral {
		msg.Flags = discord.MessageFlagEphemeral
	}
	return msg
}

func newInput(user discord.User, member *discord.ResolvedMember, channelID snowflake.ID, data discord.SlashCommandInteractionData) commands.Input {
	in := commands.Input{
		UserID:      user.ID.String(),
		DisplayName: user.EffectiveName(),
		ChannelID:   channelID.String(),
		Options:     make(map[string]any, len(data.Options)),
	}
	if data.SubCommandName != nil {
		in.Subcommand = *data.SubCommandName
	}
	if member != nil {
		if member.Nick != nil && *member.Nick != "" {
			in.DisplayName = *member.Nick
		}
		in.Roles = roleIDs(member.RoleIDs)
		in.Admin = isAdmin(member.Permissions)
	}

	for name, opt := range data.Options {
		switch opt.Type {
		case discord.ApplicationCommandOptionTypeString:
			in.Options[name] = data.String(name)
		case discord.ApplicationCommandOptionTypeInt:
			in.Options[name] = int64(data.Int(name))
		case discord.ApplicationCommandOptionTypeFloat:
			in.Options[name] = data.Float(name)
		case discord.ApplicationCommandOptionTypeBool:
			in.Options[name] = data.Bool(name)
		case discord.ApplicationCommandOptionTypeUser:
			u := data.User(name)
			in.Options[name] = commands.UserRef{ID: u.ID.String(), Name: u.EffectiveName()}
		case discord.ApplicationCommandOptionTypeRole:
			r := data.Role(name)
			in.Options[name] = commands.RoleRef{ID: r.ID.String(), Name: r.Name}
		case discord.ApplicationCommandOptionTypeChannel:
			c := data.Channel(name)
			in.Options[name] = commands.ChannelRef{ID: c.ID.String(), Name: c.Name}
		}
	}
	return in
}

func isAdmin(p discord.Permissions) bool {
	return p.Has(discord.PermissionAdministrator) || p.Has(discord.PermissionManageGuild)
}

package notify

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

// DiscordPlatform implements Platform over the disgo rest client for one guild.
type DiscordPlatform struct {
	client  bot.Client
	guildID snowflake.ID
}

func NewDiscordPlatform(client bot.Client, guildID snowflake.ID) *DiscordPlatform {
	return &DiscordPlatform{client: client, guildID: guildID}
}

func (p *DiscordPlatform) AddRole(ctx context.Context, userID, roleID string) error {
	uid, err := snowflake.Parse(userID)
	if err != nil {
		return err
	}
	rid, err := snowflake.Parse(roleID)
	if err != nil {
		return err
	}
	return p.client.Rest().AddMemberRole(p.guildID, uid, rid, rest.WithCtx(ctx))
}

func (p *DiscordPlatform) SendChannel(ctx context.Context, channelID string, msg Message) error {
	cid, err := snowflake.Parse(channelID)
	if err != nil {
		return err
	}
	_, err = p.client.Rest().CreateMessage(cid, discord.MessageCreate{
		Embeds: []discord.Embed{buildEmbed(msg)},
	}, rest.WithCtx(ctx))
	return err
}

// SendDM reports every failure as ErrDMUndeliverable so the caller can fall
// back to a channel.
func (p *DiscordPlatform) SendDM(ctx context.Context, userID string, msg Message) error {
	uid, err := snowflake.Parse(userID)
	if err != nil {
		return err
	}
	dm, err := p.client.Rest().CreateDMChannel(uid, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDMUndeliverable, err)
	}
	_, err = p.client.Rest().CreateMessage(dm.ID(), discord.MessageCreate{
		Embeds: []discord.Embed{buildEmbed(msg)},
	}, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDMUndeliverable, err)
	}
	return nil
}

func buildEmbed(msg Message) discord.Embed {
	embed := discord.NewEmbedBuilder().
		SetTitle(msg.Title).
		SetDescription(msg.Description).
		SetColor(msg.Color)
	if msg.ImageURL != "" {
		embed.SetImage(msg.ImageURL)
	}
	if msg.Thumbnail != "" {
		embed.SetThumbnail(msg.Thumbnail)
	}
	if !msg.Timestamp.IsZero() {
		embed.SetTimestamp(msg.Timestamp)
	}
	return embed.Build()
}

package commands

import (
	"github.com/disgoorg/disgo/discord"
)

func intPtr(i int) *int {
	return &i
}

func floatPtr(f float64) *float64 {
	return &f
}

func describe(name string) string {
	return table[name].Description
}

func slash(name string, options ...discord.ApplicationCommandOption) discord.SlashCommandCreate {
	return discord.SlashCommandCreate{
		Name:        name,
		Description: describe(name),
		Options:     options,
	}
}

func sub(parent, name string, options ...discord.ApplicationCommandOption) discord.ApplicationCommandOptionSubCommand {
	return discord.ApplicationCommandOptionSubCommand{
		Name:        name,
		Description: describe(Key(parent, name)),
		Options:     options,
	}
}

func userOpt(name, description string, required bool) discord.ApplicationCommandOptionUser {
	return discord.ApplicationCommandOptionUser{Name: name, Description: description, Required: required}
}

func intOpt(name, description string, required bool, lo, hi int) discord.ApplicationCommandOptionInt {
	return discord.ApplicationCommandOptionInt{
		Name:        name,
		Description: description,
		Required:    required,
		MinValue:    intPtr(lo),
		MaxValue:    intPtr(hi),
	}
}

func floatOpt(name, description string, required bool, lo, hi float64) discord.ApplicationCommandOptionFloat {
	return discord.ApplicationCommandOptionFloat{
		Name:        name,
		Description: description,
		Required:    required,
		MinValue:    floatPtr(lo),
		MaxValue:    floatPtr(hi),
	}
}

func roleOpt(description string) discord.ApplicationCommandOptionRole {
	return discord.ApplicationCommandOptionRole{Name: "role", Description: description, Required: true}
}

func channelOpt(description string, types ...discord.ChannelType) discord.ApplicationCommandOptionChannel {
	return discord.ApplicationCommandOptionChannel{Name: "channel", Description: description, Required: true, ChannelTypes: types}
}

func choiceOpt(name, description string, choices ...string) discord.ApplicationCommandOptionString {
	opt := discord.ApplicationCommandOptionString{Name: name, Description: description, Required: true}
	for i := 0; i+1 < len(choices); i += 2 {
		opt.Choices = append(opt.Choices, discord.ApplicationCommandOptionChoiceString{Name: choices[i], Value: choices[i+1]})
	}
	return opt
}

// Definitions returns the slash commands to register with Discord.
func Definitions() []discord.ApplicationCommandCreate {
	return []discord.ApplicationCommandCreate{
		slash("rank", userOpt("user", "The user to check", false)),
		slash("level", userOpt("user", "The user to check", false)),
		slash("leaderboard"),
		slash("weekly"),
		slash("monthly"),
		slash("compare",
			userOpt("user2", "User to compare with", true),
			userOpt("user1", "First user, defaults to you", false),
		),
		slash("activity", userOpt("user", "User to check", false)),
		slash("stats"),
		slash("rewards"),
		slash("milestones"),
		slash("rolemultipliers"),
		slash("voicemultipliers"),
		slash("quiethours"),
		slash("blacklistchannels"),
		slash("invites", userOpt("user", "User to check", false)),
		slash("checkvip", userOpt("user", "User to check", false)),
		slash("mentors"),
		slash("help", discord.ApplicationCommandOptionString{
			Name:        "query",
			Description: "Search for a command",
			MaxLength:   intPtr(32),
		}),
		slash("birthday",
			intOpt("month", "Month (1-12)", true, 1, 12),
			intOpt("day", "Day (1-31)", true, 1, 31),
			intOpt("year", "Year (optional)", false, 1900, 2100),
		),
		slash("dmnotifications", choiceOpt("action", "Enable or disable", "Enable", "enable", "Disable", "disable")),
		discord.SlashCommandCreate{
			Name:        "event",
			Description: "Manage XP events",
			Options: []discord.ApplicationCommandOption{
				sub("event", "create",
					discord.ApplicationCommandOptionString{Name: "name", Description: "Event name", Required: true, MaxLength: intPtr(100)},
					intOpt("hours", "Duration in hours", true, 1, 168),
					floatOpt("multiplier", "XP multiplier (default: 2)", false, 1.1, 10),
				),
				sub("event", "end"),
				sub("event", "list"),
				sub("event", "status"),
			},
		},
		discord.SlashCommandCreate{
			Name:        "challenge",
			Description: "Daily challenges",
			Options: []discord.ApplicationCommandOption{
				sub("challenge", "list"),
				sub("challenge", "progress"),
			},
		},

		slash("setcooldown", intOpt("seconds", "Cooldown in seconds", true, 0, 300)),
		slash("setbanner", discord.ApplicationCommandOptionString{Name: "url", Description: "Image URL for the banner", Required: true}),
		slash("setreward", intOpt("level", "Level requirement", true, 1, 1000), roleOpt("Role to give")),
		slash("setmilestone", intOpt("level", "Level requirement", true, 1, 1000), roleOpt("Role to give")),
		slash("setmessage", discord.ApplicationCommandOptionString{Name: "message", Description: "Message (use {user}, {level}, {mention})", Required: true}),
		slash("setchannel", channelOpt("Channel for announcements", discord.ChannelTypeGuildText)),
		slash("setdailybonus", intOpt("amount", "Daily bonus XP amount", true, 0, 100)),
		slash("setmultiplier", floatOpt("multiplier", "XP multiplier (e.g., 1.5 for 1.5x)", true, 0.1, 10)),
		slash("setrolemultiplier", roleOpt("Role to set multiplier for"), floatOpt("multiplier", "XP multiplier", true, 0.1, 10)),
		slash("setvoicemultiplier", channelOpt("Voice channel", discord.ChannelTypeGuildVoice, discord.ChannelTypeGuildStageVoice), floatOpt("multiplier", "XP multiplier", true, 0.1, 10)),
		slash("setxpcap", intOpt("amount", "Daily XP cap (0 = no cap)", true, 0, 10000)),
		slash("setreactionxp", intOpt("amount", "Reaction XP amount", true, 0, 10)),
		slash("setwelcomebonus",
			intOpt("amount", "Bonus XP amount", true, 0, 1000),
			intOpt("days", "Number of days for welcome bonus", true, 1, 30),
		),
		slash("setquiethours",
			intOpt("start", "Start hour (0-23)", true, 0, 23),
			intOpt("end", "End hour (0-23)", true, 0, 23),
			floatOpt("multiplier", "XP multiplier during quiet hours", false, 0.1, 1),
		),
		slash("addinvite", userOpt("user", "User to add invites to", true), intOpt("amount", "Number of invites", false, 1, 100)),
		slash("blacklist", channelOpt("Channel to blacklist"), choiceOpt("action", "Add or remove from blacklist", "Add", "add", "Remove", "remove")),
		slash("resetuser", userOpt("user", "User to reset", true)),
		slash("resetall"),
		slash("setvip", userOpt("user", "User to set as VIP", true), intOpt("days", "Number of days", true, 1, 365)),
		slash("setstreak", userOpt("user", "User to set streak for", true), intOpt("days", "Streak days", true, 0, 365)),
		slash("setmentor",
			userOpt("mentor", "Mentor user", true),
			userOpt("mentee", "Mentee user", true),
			floatOpt("bonus", "Share of the mentee's XP (default: 0.2)", false, 0.1, 1),
		),
		slash("removementor", userOpt("mentor", "Mentor user", true), userOpt("mentee", "Mentee user", true)),
		slash("addxp", userOpt("user", "User to grant XP to", true), intOpt("amount", "XP amount", true, 1, 100000)),
	}
}

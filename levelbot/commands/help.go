package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/sahilm/fuzzy"
)

const helpPerPage = 12

func init() {
	register(Command{Name: "help", Description: "Show all available commands", Handle: help})
}

// commandList implements fuzzy.Source over command names.
type commandList []Command

func (c commandList) Len() int {
	return len(c)
}

func (c commandList) String(i int) string {
	return c[i].Name
}

// Search returns the commands matching query, best match first. An empty
// query returns every command the caller may run.
func Search(query string, admin bool) []Command {
	var visible commandList
	for _, c := range All() {
		if c.Admin && !admin {
			continue
		}
		visible = append(visible, c)
	}

	query = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(query)), "/")
	if query == "" {
		return visible
	}
	matches := fuzzy.FindFrom(query, visible)
	found := make([]Command, 0, len(matches))
	for _, m := range matches {
		found = append(found, visible[m.Index])
	}
	return found
}

func help(ctx context.Context, d *Deps, in Input) (Reply, error) {
	query := in.String("query")
	cmds := Search(query, in.Admin)
	if len(cmds) == 0 {
		return private("No command matches %q.", query), nil
	}

	total := (len(cmds) + helpPerPage - 1) / helpPerPage
	pages := make([]discord.Embed, 0, total)
	for start := 0; start < len(cmds); start += helpPerPage {
		end := min(start+helpPerPage, len(cmds))
		eb := discord.NewEmbedBuilder().
			SetColor(ColorDefault).
			SetTitle("📖 Commands").
			SetFooter(fmt.Sprintf("Page %d/%d • /help query:<name> to search", len(pages)+1, total), "")
		for _, c := range cmds[start:end] {
			name := "/" + c.Name
			if c.Admin {
				name += " (admin)"
			}
			eb.AddField(name, c.Description, false)
		}
		pages = append(pages, eb.Build())
	}
	return Reply{Pages: pages, Ephemeral: true}, nil
}

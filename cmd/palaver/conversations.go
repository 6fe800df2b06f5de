package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/go-go-golems/palaver/pkg/store"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// resolveConversation accepts a 1-based index, a full id or a unique id
// prefix. An empty ref is the active conversation.
func resolveConversation(s *store.State, ref string) (*conversation.Conversation, error) {
	if ref == "" {
		if c := s.ActiveConversation(); c != nil {
			return c, nil
		}
		return nil, store.ErrNoActiveConversation
	}

	if idx, err := strconv.Atoi(ref); err == nil {
		if idx < 1 || idx > len(s.Conversations) {
			return nil, errors.Errorf("no conversation number %d", idx)
		}
		return s.Conversations[idx-1], nil
	}

	var found *conversation.Conversation
	for _, c := range s.Conversations {
		id := c.ID.String()
		if id == ref {
			return c, nil
		}
		if strings.HasPrefix(id, ref) {
			if found != nil {
				return nil, errors.Errorf("conversation id prefix %q is ambiguous", ref)
			}
			found = c
		}
	}
	if found == nil {
		return nil, errors.Wrapf(store.ErrConversationNotFound, "%q", ref)
	}
	return found, nil
}

type conversationRow struct {
	Index    int    `json:"index" yaml:"index"`
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Messages int    `json:"messages" yaml:"messages"`
	Tokens   *int   `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	Active   bool   `json:"active" yaml:"active"`
}

func conversationRows(s *store.State) []conversationRow {
	ret := make([]conversationRow, 0, len(s.Conversations))
	for i, c := range s.Conversations {
		ret = append(ret, conversationRow{
			Index:    i + 1,
			ID:       c.ID.String(),
			Title:    c.TitleOr(""),
			Messages: len(c.Messages),
			Tokens:   c.TokensUsed,
			Active:   s.ActiveConversationID != nil && *s.ActiveConversationID == c.ID,
		})
	}
	return ret
}

func printConversations(w io.Writer, s *store.State, output string) error {
	rows := conversationRows(s)
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(rows)
	case "text", "":
	default:
		return errors.Errorf("unknown output format %q", output)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "\t#\tID\tTITLE\tMESSAGES\tTOKENS")
	for _, r := range rows {
		marker := ""
		if r.Active {
			marker = "*"
		}
		tokens := "-"
		if r.Tokens != nil {
			tokens = strconv.Itoa(*r.Tokens)
		}
		title := r.Title
		if title == "" {
			title = "(untitled)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%s\n", marker, r.Index, r.ID[:8], title, r.Messages, tokens)
	}
	return tw.Flush()
}

// renderMarkdown renders the conversation as markdown, one section per
// message.
func renderMarkdown(c *conversation.Conversation) string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "# %s\n\n", c.TitleOr("Untitled conversation"))
	for _, m := range c.Messages {
		_, _ = fmt.Fprintf(&sb, "## %s\n\n%s\n\n", m.Role, m.Content)
		if m.Loading {
			sb.WriteString("_(incomplete)_\n\n")
		}
	}
	return sb.String()
}

func newConversationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv", "c"},
		Short:   "Manage conversations",
	}

	var output string
	list := &cobra.Command{
		Use:   "list",
		Short: "List conversations, the active one is marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				return printConversations(cmd.OutOrStdout(), app.Store.Snapshot(), output)
			})
		},
	}
	list.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json, yaml)")

	add := &cobra.Command{
		Use:   "add [title]",
		Short: "Start a new conversation and make it active",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				var title *string
				if len(args) == 1 {
					title = &args[0]
				}
				id, err := app.Store.AddConversation(title)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
				return err
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <conversation>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				c, err := resolveConversation(app.Store.Snapshot(), args[0])
				if err != nil {
					return err
				}
				return app.Store.DeleteConversation(c.ID)
			})
		},
	}

	sel := &cobra.Command{
		Use:   "select <conversation>",
		Short: "Make a conversation the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				c, err := resolveConversation(app.Store.Snapshot(), args[0])
				if err != nil {
					return err
				}
				return app.Store.SetActiveConversation(c.ID)
			})
		},
	}

	var raw bool
	var width int
	show := &cobra.Command{
		Use:   "show [conversation]",
		Short: "Print a conversation, the active one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				ref := ""
				if len(args) == 1 {
					ref = args[0]
				}
				c, err := resolveConversation(app.Store.Snapshot(), ref)
				if err != nil {
					return err
				}

				if raw {
					_, err = fmt.Fprint(cmd.OutOrStdout(), c.Messages.Transcript())
					return err
				}

				r, err := glamour.NewTermRenderer(
					glamour.WithAutoStyle(),
					glamour.WithWordWrap(width),
				)
				if err != nil {
					return err
				}
				out, err := r.Render(renderMarkdown(c))
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), out)
				return err
			})
		},
	}
	show.Flags().BoolVar(&raw, "raw", false, "Print a plain [role]: text transcript")
	show.Flags().IntVar(&width, "width", 80, "Word wrap width")

	rename := &cobra.Command{
		Use:   "rename <conversation> [title]",
		Short: "Set the title of a conversation, an empty title clears it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				c, err := resolveConversation(app.Store.Snapshot(), args[0])
				if err != nil {
					return err
				}
				title := ""
				if len(args) == 2 {
					title = args[1]
				}
				return app.Store.RenameConversation(c.ID, title)
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every conversation and start over with an empty one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				return app.Store.ClearConversations()
			})
		},
	}

	cmd.AddCommand(list, add, del, sel, show, rename, clearCmd)
	return cmd
}

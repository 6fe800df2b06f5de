package main

import (
	"context"
	"io"
	"strings"

	"github.com/go-go-golems/palaver/pkg/chat"
	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/spf13/cobra"
)

func newSendCommand() *cobra.Command {
	var newConversation bool
	var title string
	var raw bool

	cmd := &cobra.Command{
		Use:   "send [text...]",
		Short: "Send a message to the active conversation and stream the answer",
		Long:  "Send a message to the active conversation and stream the answer. Without arguments the message is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(b)
			}

			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				if newConversation {
					var t *string
					if title != "" {
						t = &title
					}
					if _, err := app.Store.AddConversation(t); err != nil {
						return err
					}
				}
				return streamTo(ctx, app, cmd.OutOrStdout(), raw, func(ctx context.Context) (*chat.Submission, error) {
					return app.Coordinator.SubmitText(ctx, text)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&newConversation, "new", false, "Start a new conversation first")
	cmd.Flags().StringVar(&title, "title", "", "Title of the new conversation")
	cmd.Flags().BoolVar(&raw, "print-raw-events", false, "Print the raw conversation events as JSON instead of the answer")

	return cmd
}

func newRegenerateCommand() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Replace the last answer of the active conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				return streamTo(ctx, app, cmd.OutOrStdout(), raw, app.Coordinator.RegenerateLast)
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "print-raw-events", false, "Print the raw conversation events as JSON instead of the answer")

	return cmd
}

// streamTo starts a submission and prints its events to w until it and any
// title inference it triggered are over. raw prints every event as JSON.
func streamTo(
	ctx context.Context,
	app *App,
	w io.Writer,
	raw bool,
	start func(ctx context.Context) (*chat.Submission, error),
) error {
	if raw {
		app.Router.AddHandler("raw", events.TopicChat, app.Router.DumpRawEventsTo(w))
	} else {
		app.Router.AddHandler("printer", events.TopicChat, events.StepPrinterFunc("", w))
	}

	return runWithRouter(ctx, app, func(ctx context.Context) error {
		sub, err := start(ctx)
		if err != nil {
			return err
		}
		_, err = sub.Wait()
		app.Coordinator.Wait()
		return err
	})
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/palaver/pkg/chat"
	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newChatCommand() *cobra.Command {
	var lineMode bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the active conversation",
		Long: "Chat in the active conversation. Opens a terminal UI, or reads one message per line " +
			"when stdin is not a terminal or --lines is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fd := os.Stdin.Fd()
			interactive := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)

			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				if lineMode || !interactive {
					return runLines(ctx, app, cmd.InOrStdin(), cmd.OutOrStdout())
				}
				return runTUI(ctx, app)
			})
		},
	}
	cmd.Flags().BoolVar(&lineMode, "lines", false, "Read one message per line instead of opening the UI")

	return cmd
}

func runTUI(ctx context.Context, app *App) error {
	// the UI owns the terminal, logs only go to --log-file
	if viper.GetString("log-file") == "" {
		log.Logger = log.Output(io.Discard)
	}

	model := ui.NewModel(ctx, app.Store, app.Coordinator)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	app.Router.AddHandler("ui-forward", events.TopicChat, ui.EventForwardFunc(p))

	return runWithRouter(ctx, app, func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			p.Quit()
		}()
		_, err := p.Run()
		return err
	})
}

// runLines submits every non-empty line of r and streams the answers to w.
func runLines(ctx context.Context, app *App, r io.Reader, w io.Writer) error {
	app.Router.AddHandler("printer", events.TopicChat, events.StepPrinterFunc("assistant", w))

	return runWithRouter(ctx, app, func(ctx context.Context) error {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			sub, err := app.Coordinator.SubmitText(ctx, line)
			if err != nil {
				return err
			}
			if _, err := sub.Wait(); err != nil {
				var terr *chat.TransportError
				if errors.As(err, &terr) {
					// already printed, keep reading
					continue
				}
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
		}
		app.Coordinator.Wait()
		if err := scanner.Err(); err != nil {
			return errors.Wrap(err, "could not read input")
		}
		_, err := fmt.Fprintln(w)
		return err
	})
}

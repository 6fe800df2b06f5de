package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newExportCommand() *cobra.Command {
	var format string
	var outputFile string

	cmd := &cobra.Command{
		Use:   "export [conversation]",
		Short: "Write a conversation as JSON or YAML, the active one by default",
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

				if outputFile != "" {
					if format == "" {
						return conversation.SaveToFile(outputFile, c)
					}
					f, err := os.Create(outputFile)
					if err != nil {
						return err
					}
					defer func(f *os.File) {
						_ = f.Close()
					}(f)
					return conversation.Encode(f, c, conversation.Format(format))
				}

				if format == "" {
					format = string(conversation.FormatJSON)
				}
				return conversation.Encode(cmd.OutOrStdout(), c, conversation.Format(format))
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (json, yaml), taken from the file name by default")
	cmd.Flags().StringVarP(&outputFile, "output-file", "O", "", "Write to this file instead of stdout")

	return cmd
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Add a conversation exported as JSON or YAML and make it active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := conversation.LoadFromFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "could not load %s", args[0])
			}

			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				id, err := app.Store.ImportConversation(c)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
				return err
			})
		},
	}
}

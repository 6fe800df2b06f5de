package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/go-go-golems/palaver/pkg/store"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// uiKeys are preferences kept on the UI state rather than in the settings.
var uiKeys = []string{"color-scheme", "push-to-talk-mode", "nav-opened"}

func setUIPreference(st *store.Store, key string, value string) error {
	switch key {
	case "color-scheme":
		return st.SetColorScheme(store.ColorScheme(strings.TrimSpace(value)))
	case "push-to-talk-mode", "nav-opened":
		var b bool
		if err := yaml.Unmarshal([]byte(value), &b); err != nil {
			return errors.Wrapf(err, "invalid value for %s", key)
		}
		if key == "nav-opened" {
			return st.SetNavOpened(b)
		}
		return st.SetPushToTalkMode(b)
	}
	return errors.Errorf("unknown setting %q", key)
}

func newSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the stored completion settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the stored settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				s := app.Store.Snapshot()
				b, err := yaml.Marshal(struct {
					Settings *settings.Settings `yaml:"settings"`
					UI       store.UIState      `yaml:"ui"`
				}{s.Settings, s.UI})
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			})
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Long: fmt.Sprintf("Change one setting. Keys: %s, %s.",
			strings.Join(settings.Keys, ", "), strings.Join(uiKeys, ", ")),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				for _, k := range uiKeys {
					if k == key {
						return setUIPreference(app.Store, key, value)
					}
				}
				s := app.Store.Snapshot().Settings.Clone()
				if err := s.Set(key, value); err != nil {
					return err
				}
				return app.Store.UpdateSettings(s)
			})
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				return app.Store.UpdateSettings(settings.NewSettings())
			})
		},
	}

	cmd.AddCommand(show, set, reset)
	return cmd
}

func newKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the stored API key",
	}

	set := &cobra.Command{
		Use:   "set [key]",
		Short: "Store the API key, read from stdin when not given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.Wrap(err, "could not read key")
				}
				key = line
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("empty key")
			}
			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				return app.Store.SetAPIKey(key)
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				return app.Store.SetAPIKey("")
			})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Tell whether an API key is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				msg := "no API key stored"
				if app.Store.Snapshot().HasCredential() {
					msg = "API key stored"
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), msg)
				return err
			})
		},
	}

	cmd.AddCommand(set, clearCmd, status)
	return cmd
}

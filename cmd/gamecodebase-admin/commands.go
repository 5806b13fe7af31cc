package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/gamecodebase/internal/admin"
	"github.com/MarcoPoloResearchLab/gamecodebase/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	outputTable = "table"
	outputYAML  = "yaml"
)

var errActionFailed = errors.New("action failed")

func newPullCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Fetch the latest catalog from the remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, service *admin.Service) admin.Response {
				return service.Pull(ctx)
			})
		},
	}
}

func newPushCommand() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Commit and push the catalog document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, service *admin.Service) admin.Response {
				return service.Push(ctx, message)
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message (defaults to a timestamped update)")
	return cmd
}

func newPendingCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List codes awaiting review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != outputTable && output != outputYAML {
				return fmt.Errorf("unknown output format %q", output)
			}
			service, closeApp, err := openService()
			if err != nil {
				return err
			}
			defer closeApp()

			queue := service.Pending(cmd.Context())
			writeNotices(cmd.ErrOrStderr(), queue.Notices)
			if output == outputYAML {
				return writePendingYAML(cmd.OutOrStdout(), queue)
			}
			writePending(cmd.OutOrStdout(), queue)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table, yaml)")
	return cmd
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the catalog document against its schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, service *admin.Service) admin.Response {
				return service.Check(ctx)
			})
		},
	}
}

func newReviewCommand(verb string, approve bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <game-index> <code-index>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a pending code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameIndex, codeIndex, err := parseIndexPair(args)
			if err != nil {
				return err
			}
			var action admin.Action = admin.RejectCode{GameIndex: gameIndex, CodeIndex: codeIndex}
			if approve {
				action = admin.ApproveCode{GameIndex: gameIndex, CodeIndex: codeIndex}
			}
			return withService(cmd, func(ctx context.Context, service *admin.Service) admin.Response {
				return service.Dispatch(ctx, action)
			})
		},
	}
}

func newAddGameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add-game <name>",
		Short: "Add an empty game to the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			return withService(cmd, func(ctx context.Context, service *admin.Service) admin.Response {
				return service.Dispatch(ctx, admin.AddGame{GameName: name})
			})
		},
	}
}

func openService() (*admin.Service, func(), error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	app, err := newApplication(appConfig)
	if err != nil {
		return nil, nil, err
	}
	service, err := app.adminService(nil, nil)
	if err != nil {
		app.Close()
		return nil, nil, err
	}
	return service, app.Close, nil
}

func withService(cmd *cobra.Command, run func(context.Context, *admin.Service) admin.Response) error {
	service, closeApp, err := openService()
	if err != nil {
		return err
	}
	defer closeApp()

	response := run(cmd.Context(), service)
	writeNotices(cmd.OutOrStdout(), response.Notices)
	if !response.OK {
		return fmt.Errorf("%w: %s", errActionFailed, response.Failure)
	}
	return nil
}

func parseIndexPair(args []string) (int, int, error) {
	gameIndex, err := strconv.Atoi(args[0])
	if err != nil || gameIndex < 0 {
		return 0, 0, fmt.Errorf("invalid game index %q", args[0])
	}
	codeIndex, err := strconv.Atoi(args[1])
	if err != nil || codeIndex < 0 {
		return 0, 0, fmt.Errorf("invalid code index %q", args[1])
	}
	return gameIndex, codeIndex, nil
}

func writeNotices(w io.Writer, notices []admin.Notice) {
	for _, notice := range notices {
		fmt.Fprintf(w, "[%s] %s\n", notice.Level, notice.Text)
	}
}

type pendingDocument struct {
	Pending []pendingEntry `yaml:"pending"`
}

type pendingEntry struct {
	Game      string `yaml:"game"`
	GameIndex int    `yaml:"game_index"`
	CodeIndex int    `yaml:"code_index"`
	Code      string `yaml:"code"`
	Reward    string `yaml:"reward,omitempty"`
	Source    string `yaml:"source,omitempty"`
}

func writePendingYAML(w io.Writer, queue admin.PendingQueue) error {
	document := pendingDocument{Pending: make([]pendingEntry, 0, len(queue.Items))}
	for _, item := range queue.Items {
		document.Pending = append(document.Pending, pendingEntry{
			Game:      item.GameName,
			GameIndex: item.GameIndex,
			CodeIndex: item.CodeIndex,
			Code:      item.Code,
			Reward:    item.Reward,
			Source:    item.Source,
		})
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(document); err != nil {
		return err
	}
	return encoder.Close()
}

func writePending(w io.Writer, queue admin.PendingQueue) {
	if len(queue.Items) == 0 {
		fmt.Fprintln(w, "no codes awaiting review")
		return
	}
	for _, item := range queue.Items {
		fmt.Fprintf(w, "%d/%d\t%s\t%s\t%s\t%s\n", item.GameIndex, item.CodeIndex, item.GameName, item.Code, item.Reward, item.Source)
	}
}

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xiaot623/caucus/internal/domain"
)

func newAdvanceCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "advance SESSION_ID",
		Short: "Run one coordinator step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := client().post(cmd.Context(), sessionPath(args[0], "advance"), struct{}{})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}
}

func newSayCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "say SESSION_ID TEXT...",
		Short: "Deliver the human's pending turn",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.HumanTurnRequest{Content: strings.Join(args[1:], " ")}
			data, err := client().post(cmd.Context(), sessionPath(args[0], "human", "turn"), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}
}

func parseChoice(raw string) (domain.VoteChoice, error) {
	switch c := domain.VoteChoice(strings.ToUpper(strings.TrimSpace(raw))); c {
	case domain.VoteYes, domain.VoteNo, domain.VoteAbstain:
		return c, nil
	default:
		return "", fmt.Errorf("vote must be YES, NO or ABSTAIN, got %q", raw)
	}
}

func newVoteCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "vote SESSION_ID YES|NO|ABSTAIN",
		Short: "Cast the human's pending vote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			choice, err := parseChoice(args[1])
			if err != nil {
				return err
			}
			data, err := client().post(cmd.Context(), sessionPath(args[0], "human", "vote"), domain.HumanVoteRequest{Choice: choice})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}
}

func newYieldCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "yield SESSION_ID [TARGET]",
		Short: "Yield the human's floor to the chair or another attendee",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req domain.HumanYieldRequest
			if len(args) == 2 {
				req.Target = args[1]
			}
			data, err := client().post(cmd.Context(), sessionPath(args[0], "human", "yield"), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}
}

func newChairCmd(client func() *apiClient) *cobra.Command {
	var rawArgs string
	cmd := &cobra.Command{
		Use:   "chair SESSION_ID TOOL",
		Short: "Invoke a chair tool with JSON arguments",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := json.RawMessage(strings.TrimSpace(rawArgs))
			if len(body) == 0 {
				body = json.RawMessage(`{}`)
			}
			if !json.Valid(body) {
				return fmt.Errorf("--args is not valid JSON")
			}
			data, err := client().post(cmd.Context(), sessionPath(args[0], "chair", args[1]), body)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "{}", "tool arguments as a JSON object")
	return cmd
}

func newToolsCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the chair tools the server offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := client().get(cmd.Context(), "/v1/chair/tools", nil)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}
}

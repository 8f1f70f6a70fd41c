package cmd

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xiaot623/caucus/internal/domain"
	"github.com/xiaot623/caucus/internal/rules"
)

// parseAttendee reads "ID" or "ID:STATUS".
func parseAttendee(raw string) (domain.AttendeeSpec, error) {
	id, status, hasStatus := strings.Cut(strings.TrimSpace(raw), ":")
	if id == "" {
		return domain.AttendeeSpec{}, fmt.Errorf("attendee %q has no id", raw)
	}
	spec := domain.AttendeeSpec{ID: id}
	if hasStatus {
		st := domain.AttendanceStatus(strings.ToUpper(status))
		switch st {
		case domain.AttendancePresent, domain.AttendancePresentAndVoting, domain.AttendanceAbsent:
			spec.Status = st
		default:
			return domain.AttendeeSpec{}, fmt.Errorf("attendee %q has unknown status %q", id, status)
		}
	}
	return spec, nil
}

func buildCreateRequest(attendees []string, human, rulesFile string) (domain.CreateSessionRequest, error) {
	var req domain.CreateSessionRequest
	for _, raw := range attendees {
		spec, err := parseAttendee(raw)
		if err != nil {
			return req, err
		}
		spec.Human = spec.ID == human
		req.Attendees = append(req.Attendees, spec)
	}
	if human != "" {
		found := false
		for _, a := range req.Attendees {
			found = found || a.Human
		}
		if !found {
			req.Attendees = append(req.Attendees, domain.AttendeeSpec{ID: human, Human: true})
		}
	}
	if rulesFile != "" {
		r, err := rules.Load(rulesFile)
		if err != nil {
			return req, err
		}
		req.Rules = &r
	}
	return req, nil
}

func newCreateCmd(client func() *apiClient) *cobra.Command {
	var (
		attendees []string
		human     string
		rulesFile string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session in roll call",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := buildCreateRequest(attendees, human, rulesFile)
			if err != nil {
				return err
			}
			data, err := client().post(cmd.Context(), "/v1/sessions", req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().StringArrayVar(&attendees, "attendee", nil, "attendee as ID or ID:STATUS (repeatable)")
	cmd.Flags().StringVar(&human, "human", "", "attendee played by the human")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "rules of procedure file (yaml or toml) for this session")
	_ = cmd.MarkFlagRequired("attendee")
	return cmd
}

func newSessionsCmd(client func() *apiClient) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			data, err := client().get(cmd.Context(), "/v1/sessions", q)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum sessions to list")
	return cmd
}

func newStateCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "state SESSION_ID",
		Short: "Show the current session snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := client().get(cmd.Context(), sessionPath(args[0], "state"), nil)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}
}

func newCloseCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "close SESSION_ID",
		Short: "Close a session and keep its final state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := client().delete(cmd.Context(), sessionPath(args[0]))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}
}

func newTranscriptCmd(client func() *apiClient) *cobra.Command {
	var after, limit int
	cmd := &cobra.Command{
		Use:   "transcript SESSION_ID",
		Short: "Print the session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("after_seq", strconv.Itoa(after))
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			data, err := client().get(cmd.Context(), sessionPath(args[0], "transcript"), q)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().IntVar(&after, "after", 0, "only entries after this sequence number")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries")
	return cmd
}

func newEventsCmd(client func() *apiClient) *cobra.Command {
	var (
		after int64
		limit int
		types []string
	)
	cmd := &cobra.Command{
		Use:   "events SESSION_ID",
		Short: "Replay persisted notifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("after_seq", strconv.FormatInt(after, 10))
			if len(types) > 0 {
				q.Set("types", strings.Join(types, ","))
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			data, err := client().get(cmd.Context(), sessionPath(args[0], "events"), q)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().Int64Var(&after, "after", 0, "only notifications after this sequence number")
	cmd.Flags().StringSliceVar(&types, "type", nil, "notification types to include")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum notifications")
	return cmd
}

func newHintCmd(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "hint SESSION_ID ATTENDEE_ID",
		Short: "Ask for a strategy hint for the human's attendee",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := client().get(cmd.Context(), sessionPath(args[0], "attendees", args[1], "hint"), nil)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}
}

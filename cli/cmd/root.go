// Package cmd implements the caucusctl command tree.
package cmd

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultServer = "http://localhost:8080"

// Execute runs the root command.
func Execute() error {
	return newRootCmd(viper.New()).Execute()
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "caucusctl",
		Short:         "Drive a caucus deliberation server from the terminal",
		Long:          "caucusctl creates sessions, advances the floor, speaks and votes as the human attendee, invokes chair tools and watches live notifications.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	v.SetEnvPrefix("CAUCUS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("server", defaultServer)
	v.SetDefault("timeout", 60*time.Second)

	rootCmd.PersistentFlags().String("server", defaultServer, "caucus server base URL")
	rootCmd.PersistentFlags().Duration("timeout", 60*time.Second, "request timeout")
	_ = v.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))

	client := func() *apiClient {
		return newAPIClient(v.GetString("server"), v.GetDuration("timeout"))
	}

	rootCmd.AddCommand(
		newCreateCmd(client),
		newSessionsCmd(client),
		newStateCmd(client),
		newCloseCmd(client),
		newAdvanceCmd(client),
		newSayCmd(client),
		newVoteCmd(client),
		newYieldCmd(client),
		newChairCmd(client),
		newToolsCmd(client),
		newTranscriptCmd(client),
		newEventsCmd(client),
		newHintCmd(client),
		newWatchCmd(v),
	)

	return rootCmd
}

func writeJSON(w io.Writer, data json.RawMessage) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		_, err = w.Write(append(data, '\n'))
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

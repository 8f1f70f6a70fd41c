package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/xiaot623/caucus/internal/protocol"
)

func newWatchCmd(v *viper.Viper) *cobra.Command {
	var (
		attendeeID string
		count      int
	)
	cmd := &cobra.Command{
		Use:   "watch SESSION_ID",
		Short: "Stream live session notifications over the websocket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := websocketURL(v.GetString("server"), args[0])
			if err != nil {
				return err
			}
			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), addr, nil)
			if err != nil {
				return fmt.Errorf("dial: %w", err)
			}
			defer conn.Close()

			go func() {
				<-cmd.Context().Done()
				conn.Close()
			}()

			return watch(conn, args[0], attendeeID, count, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&attendeeID, "attendee", "", "attendee to bind the connection to")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many messages (0 streams until closed)")
	return cmd
}

// watch says hello and prints one line per server message.
func watch(conn *websocket.Conn, sessionID, attendeeID string, count int, out io.Writer) error {
	hello := protocol.HelloMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeHello,
			Ts:        time.Now().UnixMilli(),
			SessionID: sessionID,
		},
		AttendeeID: attendeeID,
	}
	if err := conn.WriteJSON(hello); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	for seen := 0; count == 0 || seen < count; seen++ {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if err := printMessage(out, data); err != nil {
			return err
		}
	}
	return nil
}

func printMessage(out io.Writer, data []byte) error {
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	switch base.Type {
	case protocol.TypeEvent:
		var evt protocol.EventMessage
		if err := json.Unmarshal(data, &evt); err != nil {
			return fmt.Errorf("unmarshal event: %w", err)
		}
		_, err := fmt.Fprintf(out, "[%d] %s %s\n", evt.Seq, evt.Event, evt.Payload)
		return err
	case protocol.TypeError:
		var e protocol.ErrorMessage
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("unmarshal error: %w", err)
		}
		return fmt.Errorf("server error %s: %s", e.Code, e.Message)
	default:
		_, err := fmt.Fprintf(out, "%s %s\n", base.Type, data)
		return err
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/njones/sioclient"
	"github.com/njones/sioclient/callback"
	"github.com/spf13/cobra"
)

func listenCmd(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "listen <url>",
		Short: "Print every event the server sends",
		Long: `Connect to the namespace in the url and print each event as one JSON
line until interrupted. Binary values are printed base64 encoded.

Examples:
  sioclient listen http://localhost:3000
  sioclient listen http://localhost:3000/admin --auth '{"token":"abc"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := flags.logger()
			if err != nil {
				return err
			}
			defer log.Sync()

			client, err := flags.client(args[0], log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			printEvents(client, cmd.OutOrStdout())
			client.OnDisconnected(func(reason sioclient.DisconnectReason) {
				fmt.Fprintf(cmd.ErrOrStderr(), "disconnected: %s\n", reason)
			})
			client.OnReconnectFailed(stop)

			if err := client.Connect(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "connected as %s\n", client.ID())

			<-ctx.Done()
			client.Disconnect(context.Background())
			return nil
		},
	}
}

type eventLine struct {
	Event string        `json:"event"`
	Args  []interface{} `json:"args"`
}

func printEvents(client *sioclient.Client, w io.Writer) {
	enc := json.NewEncoder(w)
	client.OnAny(func(event string, res *sioclient.Response) {
		err := callback.FuncAny(func(args ...interface{}) error {
			return enc.Encode(eventLine{Event: event, Args: args})
		}).Callback(res)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", event, err)
		}
	})
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/njones/sioclient/callback"
	"github.com/spf13/cobra"
)

func emitCmd(flags *clientFlags) *cobra.Command {
	var (
		ack  bool
		wait time.Duration
	)

	cmd := &cobra.Command{
		Use:   "emit <url> <event> [arg...]",
		Short: "Send one event",
		Long: `Connect, send event with the given arguments and disconnect. Arguments
that parse as JSON are sent as such, anything else as a string.

Examples:
  sioclient emit http://localhost:3000 chat hello
  sioclient emit http://localhost:3000 add 1 2 --ack`,
		Args: cobra.MinimumNArgs(2),
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

			ctx := cmd.Context()
			if err := client.Connect(ctx); err != nil {
				return err
			}
			defer client.Disconnect(ctx)

			values := parseArgs(args[2:])
			if !ack {
				return client.Emit(ctx, args[1], values...)
			}

			if wait > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, wait)
				defer cancel()
			}

			res, err := client.EmitWithAck(ctx, args[1], values...)
			if err != nil {
				return err
			}
			return callback.FuncAny(func(v ...interface{}) error {
				b, err := json.Marshal(v)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}).Callback(res)
		},
	}

	cmd.Flags().BoolVar(&ack, "ack", false, "wait for the acknowledgement and print it")
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to wait for the acknowledgement")
	return cmd
}

func parseArgs(args []string) []interface{} {
	values := make([]interface{}, len(args))
	for i, arg := range args {
		var v interface{}
		if err := json.Unmarshal([]byte(arg), &v); err != nil {
			v = arg
		}
		values[i] = v
	}
	return values
}

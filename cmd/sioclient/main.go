// Command sioclient talks to a Socket.IO server from the terminal.
//
//	sioclient listen http://localhost:3000/chat
//	sioclient emit http://localhost:3000/chat message '"hi"' --ack
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/njones/sioclient"
	eiop "github.com/njones/sioclient/engineio/protocol"
	eiot "github.com/njones/sioclient/engineio/transport"
	seri "github.com/njones/sioclient/serialize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// clientFlags are the connection settings shared by every command.
type clientFlags struct {
	eio           int
	transport     string
	reconnect     bool
	attempts      int
	delay         time.Duration
	delayMax      time.Duration
	randomization float64
	timeout       time.Duration
	query         map[string]string
	headers       map[string]string
	auth          string
	path          string
	msgpack       bool
	debug         bool
}

func (f *clientFlags) register(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.IntVar(&f.eio, "eio", 4, "Engine.IO protocol revision, 3 for socket.io v2 servers")
	fs.StringVar(&f.transport, "transport", "websocket", "websocket or polling")
	fs.BoolVar(&f.reconnect, "reconnect", true, "reconnect after a lost connection")
	fs.IntVar(&f.attempts, "attempts", 5, "reconnection attempts before giving up")
	fs.DurationVar(&f.delay, "delay", time.Second, "first reconnection delay")
	fs.DurationVar(&f.delayMax, "delay-max", 5*time.Second, "longest reconnection delay")
	fs.Float64Var(&f.randomization, "randomization", 0.5, "jitter factor between 0 and 1")
	fs.DurationVar(&f.timeout, "timeout", 20*time.Second, "handshake timeout of one attempt")
	fs.StringToStringVar(&f.query, "query", nil, "extra query parameters (key=value)")
	fs.StringToStringVar(&f.headers, "header", nil, "extra request headers (key=value)")
	fs.StringVar(&f.auth, "auth", "", "JSON auth payload sent with the namespace connect")
	fs.StringVar(&f.path, "path", "/socket.io/", "engine path on the server")
	fs.BoolVar(&f.msgpack, "msgpack", false, "use the msgpack parser instead of JSON")
	fs.BoolVar(&f.debug, "debug", false, "development logging")
}

func (f *clientFlags) logger() (*zap.Logger, error) {
	if f.debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (f *clientFlags) client(url string, log *zap.Logger) (*sioclient.Client, error) {
	opts := []sioclient.Option{
		sioclient.WithLogger(log),
		sioclient.WithEIO(eiop.Version(f.eio)),
		sioclient.WithTransport(eiot.Name(f.transport)),
		sioclient.WithReconnection(f.reconnect),
		sioclient.WithReconnectionAttempts(f.attempts),
		sioclient.WithReconnectionDelay(f.delay),
		sioclient.WithReconnectionDelayMax(f.delayMax),
		sioclient.WithRandomizationFactor(f.randomization),
		sioclient.WithConnectionTimeout(f.timeout),
		sioclient.WithQuery(f.query),
		sioclient.WithExtraHeaders(f.headers),
		sioclient.WithPath(f.path),
	}
	if f.auth != "" {
		var auth interface{}
		if err := json.Unmarshal([]byte(f.auth), &auth); err != nil {
			return nil, fmt.Errorf("--auth: %w", err)
		}
		opts = append(opts, sioclient.WithAuth(auth))
	}
	if f.msgpack {
		opts = append(opts, sioclient.WithSerializer(seri.NewMsgPack()))
	}
	return sioclient.NewClient(url, opts...)
}

func main() {
	var flags clientFlags

	rootCmd := &cobra.Command{
		Use:           "sioclient",
		Short:         "A Socket.IO client for the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.register(rootCmd)

	rootCmd.AddCommand(
		listenCmd(&flags),
		emitCmd(&flags),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

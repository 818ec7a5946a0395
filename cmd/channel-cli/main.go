package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"Broadcast-Apps/internal/actor"
	"Broadcast-Apps/internal/channel"
	"Broadcast-Apps/internal/codec"
	"Broadcast-Apps/internal/core/network"
	"Broadcast-Apps/internal/identity"
	"Broadcast-Apps/internal/logging"
)

func main() {
	bootstrap := pflag.StringSlice("bootstrap", nil, "multiaddr of a channel node (repeatable)")
	listen := pflag.StringSlice("listen", []string{"/ip4/0.0.0.0/tcp/0"}, "libp2p listen multiaddrs")
	mdns := pflag.Bool("mdns", false, "discover nodes over mDNS")
	keyFile := pflag.String("key-file", "", "libp2p identity key file; the key decides the sender identity")
	topic := pflag.String("topic", actor.DefaultTopic, "channel topic prefix")
	codecName := pflag.String("codec", "json", "wire codec: json or msgpack")
	action := pflag.StringP("action", "a", string(channel.ActionMeta), "meta, subscribe, unsubscribe, post or feed")
	text := pflag.StringP("text", "t", "", "post text")
	follow := pflag.BoolP("follow", "F", false, "keep running and print pushed posts")
	settle := pflag.Duration("settle", 2*time.Second, "time to wait for the gossip mesh before sending")
	timeout := pflag.Duration("timeout", 10*time.Second, "reply timeout")
	logLevel := pflag.String("log-level", "warn", "log level")
	pflag.Parse()

	logger, err := logging.New(*logLevel, "text", os.Stderr)
	if err != nil {
		logrus.WithError(err).Fatal("configure logging")
	}

	kind := channel.ActionKind(*action)
	if !kind.Valid() {
		logger.Fatalf("unknown action %q", *action)
	}
	wire, err := codec.ByName(*codecName)
	if err != nil {
		logger.WithError(err).Fatal("codec")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p2p, err := network.NewLibp2pPubSub(ctx, network.Libp2pOptions{
		ListenAddrs:     *listen,
		Bootstrap:       *bootstrap,
		Rendezvous:      *topic,
		EnableMDNS:      *mdns,
		IdentityKeyFile: *keyFile,
		Logger:          logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("start libp2p")
	}
	defer p2p.Close()

	self := identity.FromPeer(p2p.PeerID())
	cl, err := actor.NewClient(p2p, wire, actor.Topics{Prefix: *topic}, self)
	if err != nil {
		logger.WithError(err).Fatal("start client")
	}
	defer cl.Close()
	fmt.Fprintf(os.Stderr, "identity %s\n", self)

	select {
	case <-ctx.Done():
		return
	case <-time.After(*settle):
	}

	callCtx, cancel := context.WithTimeout(ctx, *timeout)
	reply, err := cl.Do(callCtx, channel.Action{Kind: kind, Text: *text})
	cancel()
	if err != nil {
		logger.WithError(err).Fatal("action failed")
	}
	printJSON(reply)

	if !*follow {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case post, ok := <-cl.Notifications():
			if !ok {
				return
			}
			printJSON(post)
		}
	}
}

func printJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(b))
}

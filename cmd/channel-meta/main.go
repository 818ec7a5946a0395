package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"Broadcast-Apps/internal/actor"
	"Broadcast-Apps/internal/codec"
	"Broadcast-Apps/internal/metadata"
)

func main() {
	format := pflag.StringP("format", "f", "yaml", "output format: yaml or json")
	topic := pflag.String("topic", actor.DefaultTopic, "channel topic prefix")
	codecName := pflag.String("codec", "json", "wire codec: json or msgpack")
	pflag.Parse()

	c, err := codec.ByName(*codecName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	desc := metadata.Describe(actor.Topics{Prefix: *topic}, c.Name())
	var out []byte
	switch *format {
	case "yaml":
		out, err = desc.YAML()
	case "json":
		out, err = desc.JSON()
	default:
		err = fmt.Errorf("unknown format %q", *format)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Stdout.Write(out)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		fmt.Println()
	}
}

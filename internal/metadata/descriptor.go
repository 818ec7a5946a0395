// Package metadata describes the channel's external interface for tooling: the
// inbound action variants, the output variants and the queryable state shape.
package metadata

import (
	"reflect"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"Broadcast-Apps/internal/actor"
	"Broadcast-Apps/internal/channel"
)

const Title = "Broadcast Channel"

type Descriptor struct {
	Title  string  `json:"title" yaml:"title"`
	Codec  string  `json:"codec,omitempty" yaml:"codec,omitempty"`
	Handle Handle  `json:"handle" yaml:"handle"`
	State  Type    `json:"state" yaml:"state"`
	Topics []Topic `json:"topics" yaml:"topics"`
}

type Handle struct {
	Input  Type `json:"input" yaml:"input"`
	Output Type `json:"output" yaml:"output"`
}

type Type struct {
	Name     string    `json:"name" yaml:"name"`
	Repeated bool      `json:"repeated,omitempty" yaml:"repeated,omitempty"`
	Variants []Variant `json:"variants,omitempty" yaml:"variants,omitempty"`
	Fields   []Field   `json:"fields,omitempty" yaml:"fields,omitempty"`
}

type Variant struct {
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"fields,omitempty" yaml:"fields,omitempty"`
}

type Field struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

type Topic struct {
	Name    string `json:"name" yaml:"name"`
	Carries string `json:"carries" yaml:"carries"`
}

// Describe builds the descriptor for a channel served on topics with the named codec.
func Describe(topics actor.Topics, codecName string) Descriptor {
	post := fieldsOf(reflect.TypeOf(channel.Post{}))
	meta := fieldsOf(reflect.TypeOf(channel.Metadata{}))

	input := Type{Name: "ChannelAction"}
	for _, k := range channel.ActionKinds {
		v := Variant{Name: string(k)}
		if k == channel.ActionPost {
			v.Fields = []Field{{Name: "text", Type: "string"}}
		}
		input.Variants = append(input.Variants, v)
	}

	output := Type{Name: "ChannelOutput"}
	for _, k := range channel.ReplyKinds {
		v := Variant{Name: string(k)}
		switch k {
		case channel.ReplyMetadata:
			v.Fields = meta
		case channel.ReplyFeed:
			v.Fields = []Field{{Name: "feed", Type: "[]Message"}}
		}
		output.Variants = append(output.Variants, v)
	}
	output.Variants = append(output.Variants,
		Variant{Name: string(actor.OutputSingleMessage), Fields: post},
		Variant{Name: string(actor.OutputError), Fields: fieldsOf(reflect.TypeOf(actor.ErrorBody{}))},
	)

	return Descriptor{
		Title:  Title,
		Codec:  codecName,
		Handle: Handle{Input: input, Output: output},
		State:  Type{Name: "Message", Repeated: true, Fields: post},
		Topics: []Topic{
			{Name: topics.Requests(), Carries: "Request{id, sender, payload: ChannelAction}"},
			{Name: topics.InboxPattern(), Carries: "ChannelOutput"},
			{Name: topics.Events(), Carries: "Event{type, seq, metadata, subscriber, post}"},
		},
	}
}

func (d Descriptor) YAML() ([]byte, error) {
	return yaml.Marshal(d)
}

func (d Descriptor) JSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

func fieldsOf(t reflect.Type) []Field {
	out := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			name = f.Name
		}
		out = append(out, Field{Name: name, Type: typeName(f.Type)})
	}
	return out
}

func typeName(t reflect.Type) string {
	if t.Kind() == reflect.Array && t.Elem().Kind() == reflect.Uint8 {
		return "ActorId"
	}
	return t.Kind().String()
}

package mcu

import (
	"encoding/json"
	"fmt"
	"strings"

	"avradc/protocol"
)

// Dictionary is the parsed identify data.
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`

	commands  map[string]*Message
	responses map[uint16]*Message
}

// Param is one "name=%x" field of a message format.
type Param struct {
	Name string
	Type string
}

// IsBuffer reports whether the field is a length-prefixed byte string.
func (p Param) IsBuffer() bool {
	return p.Type == "%.*s" || p.Type == "%*s"
}

// Message is a command or response signature.
type Message struct {
	ID     uint16
	Name   string
	Params []Param
}

// Response is a decoded response. Integer fields are in Params, byte
// strings in Data.
type Response struct {
	Name   string
	Params map[string]uint32
	Data   map[string][]byte
}

// Get returns an integer field, zero when absent.
func (r *Response) Get(name string) uint32 {
	return r.Params[name]
}

// ParseDictionary decodes the JSON and indexes the signatures.
func ParseDictionary(data []byte) (*Dictionary, error) {
	dict := &Dictionary{}
	if err := json.Unmarshal(data, dict); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDictionaryFormat, err)
	}

	dict.commands = make(map[string]*Message, len(dict.Commands))
	for sig, id := range dict.Commands {
		msg, err := parseSignature(sig, id)
		if err != nil {
			return nil, err
		}
		dict.commands[msg.Name] = msg
	}
	dict.responses = make(map[uint16]*Message, len(dict.Responses))
	for sig, id := range dict.Responses {
		msg, err := parseSignature(sig, id)
		if err != nil {
			return nil, err
		}
		dict.responses[msg.ID] = msg
	}
	return dict, nil
}

// parseSignature splits "adc_result channel=%c align=%c value=%hu".
func parseSignature(sig string, id int) (*Message, error) {
	fields := strings.Fields(sig)
	if len(fields) == 0 || id < 0 || id > 0xFFFF {
		return nil, fmt.Errorf("%w: bad signature %q", ErrDictionaryFormat, sig)
	}
	msg := &Message{ID: uint16(id), Name: fields[0]}
	for _, f := range fields[1:] {
		name, typ, ok := strings.Cut(f, "=")
		if !ok || !strings.HasPrefix(typ, "%") {
			return nil, fmt.Errorf("%w: bad field %q in %q", ErrDictionaryFormat, f, sig)
		}
		msg.Params = append(msg.Params, Param{Name: name, Type: typ})
	}
	return msg, nil
}

// Command looks a command up by name.
func (d *Dictionary) Command(name string) (*Message, bool) {
	msg, ok := d.commands[name]
	return msg, ok
}

// Response looks a response up by ID.
func (d *Dictionary) Response(id uint16) (*Message, bool) {
	msg, ok := d.responses[id]
	return msg, ok
}

// Enum returns the value of name in enumeration enum.
func (d *Dictionary) Enum(enum, name string) (uint32, bool) {
	v, ok := d.Enumerations[enum][name]
	return uint32(v), ok
}

// Decode parses a response frame payload.
func (d *Dictionary) Decode(payload []byte) (*Response, error) {
	id, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, err
	}
	msg, ok := d.Response(uint16(id))
	if !ok {
		return nil, fmt.Errorf("%w: response id %d", ErrUnknownCommand, id)
	}

	resp := &Response{Name: msg.Name, Params: make(map[string]uint32, len(msg.Params))}
	for _, p := range msg.Params {
		if p.IsBuffer() {
			b, err := protocol.DecodeVLQBytes(&payload)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", msg.Name, p.Name, err)
			}
			if resp.Data == nil {
				resp.Data = make(map[string][]byte)
			}
			resp.Data[p.Name] = b
			continue
		}
		v, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", msg.Name, p.Name, err)
		}
		resp.Params[p.Name] = v
	}
	return resp, nil
}

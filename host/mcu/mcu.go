// Package mcu is the host-side client for the ADC firmware.
package mcu

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"avradc/host/serial"
	"avradc/protocol"
)

var (
	ErrNotConnected     = errors.New("not connected to MCU")
	ErrNoDictionary     = errors.New("dictionary not loaded")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrArgumentCount    = errors.New("wrong number of arguments")
	ErrDictionaryFormat = errors.New("malformed dictionary")
)

// Bootstrap IDs, fixed so the dictionary can be fetched.
const (
	identifyResponseID = 0
	identifyID         = 1
	identifyChunkSize  = 40
)

// MCU is a connection to the ADC firmware.
type MCU struct {
	transport *protocol.HostTransport
	port      serial.Port

	dictionary     *Dictionary
	dictionaryData []byte

	connected bool

	// ResponseTimeout bounds Query. Defaults to one second.
	ResponseTimeout time.Duration

	// Log receives progress and discarded responses when non-nil.
	Log io.Writer
}

// NewMCU creates a new MCU instance (not yet connected).
func NewMCU() *MCU {
	return &MCU{ResponseTimeout: time.Second}
}

// Connect opens device with the default serial settings.
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	return m.ConnectPort(port)
}

// ConnectPort uses an already open port.
func (m *MCU) ConnectPort(port serial.Port) error {
	m.port = port
	m.transport = protocol.NewHostTransport(port)
	m.connected = true
	return nil
}

// Close closes the connection to the MCU.
func (m *MCU) Close() error {
	if !m.connected {
		return nil
	}
	m.connected = false
	return m.transport.Close()
}

func (m *MCU) IsConnected() bool {
	return m.connected
}

func (m *MCU) logf(format string, args ...interface{}) {
	if m.Log != nil {
		fmt.Fprintf(m.Log, format, args...)
	}
}

// RetrieveDictionary fetches the dictionary with identify and parses it.
func (m *MCU) RetrieveDictionary() error {
	if !m.connected {
		return ErrNotConnected
	}

	m.logf("Retrieving dictionary from MCU...\n")

	var dictBuffer bytes.Buffer
	offset := uint32(0)
	for {
		chunk, err := m.sendIdentify(offset, identifyChunkSize)
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", offset, err)
		}
		dictBuffer.Write(chunk)
		offset += uint32(len(chunk))
		if len(chunk) < identifyChunkSize {
			break
		}
	}

	m.dictionaryData = dictBuffer.Bytes()
	m.logf("Dictionary retrieved: %d bytes\n", len(m.dictionaryData))

	if isZlib(m.dictionaryData) {
		data, err := inflate(m.dictionaryData)
		if err != nil {
			return fmt.Errorf("failed to decompress dictionary: %w", err)
		}
		m.logf("Dictionary decompressed: %d -> %d bytes\n", len(m.dictionaryData), len(data))
		m.dictionaryData = data
	}

	dict, err := ParseDictionary(m.dictionaryData)
	if err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}
	m.dictionary = dict
	return nil
}

func (m *MCU) sendIdentify(offset uint32, count uint8) ([]byte, error) {
	err := m.transport.SendCommand(identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send identify command: %w", err)
	}

	deadline := time.Now().Add(m.ResponseTimeout)
	for {
		resp, err := m.transport.ReceiveResponse(time.Until(deadline))
		if err != nil {
			return nil, fmt.Errorf("failed to receive identify response: %w", err)
		}
		payload := resp.Payload
		cmdID, err := protocol.DecodeVLQUint(&payload)
		if err != nil || cmdID != identifyResponseID {
			continue
		}

		respOffset, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response offset: %w", err)
		}
		if respOffset != offset {
			return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
		}
		data, err := protocol.DecodeVLQBytes(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response data: %w", err)
		}
		return data, nil
	}
}

func (m *MCU) GetDictionary() *Dictionary {
	return m.dictionary
}

func (m *MCU) GetDictionaryRaw() []byte {
	return m.dictionaryData
}

// SendCommand sends name with args, encoded in the order of its format.
func (m *MCU) SendCommand(name string, args ...uint32) error {
	if !m.connected {
		return ErrNotConnected
	}
	if m.dictionary == nil {
		return ErrNoDictionary
	}
	cmd, ok := m.dictionary.Command(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	if len(args) != len(cmd.Params) {
		return fmt.Errorf("%w: %s takes %d, got %d", ErrArgumentCount, name, len(cmd.Params), len(args))
	}
	return m.transport.SendCommand(cmd.ID, func(output protocol.OutputBuffer) {
		for _, a := range args {
			protocol.EncodeVLQUint(output, a)
		}
	})
}

// Query sends name and waits for the first response named in responses.
// Other responses received meanwhile are discarded.
func (m *MCU) Query(name string, args []uint32, responses ...string) (*Response, error) {
	if err := m.SendCommand(name, args...); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(m.ResponseTimeout)
	for {
		msg, err := m.transport.ReceiveResponse(time.Until(deadline))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		resp, err := m.dictionary.Decode(msg.Payload)
		if err != nil {
			m.logf("discarding response: %v\n", err)
			continue
		}
		for _, want := range responses {
			if resp.Name == want {
				return resp, nil
			}
		}
		m.logf("discarding %s while waiting for %s\n", resp.Name, strings.Join(responses, "/"))
	}
}

// WriteDictionary prints a summary of the dictionary.
func (m *MCU) WriteDictionary(w io.Writer) {
	d := m.dictionary
	if d == nil {
		fmt.Fprintln(w, "No dictionary loaded")
		return
	}

	fmt.Fprintf(w, "Version: %s\n", d.Version)
	fmt.Fprintf(w, "Build: %s\n", d.BuildVersions)

	fmt.Fprintln(w, "\nConfig:")
	for _, k := range sortedKeys(d.Config) {
		fmt.Fprintf(w, "  %s = %s\n", k, d.Config[k])
	}

	writeCommands := func(title string, entries map[string]int) {
		fmt.Fprintf(w, "\n%s (%d):\n", title, len(entries))
		sigs := make([]string, 0, len(entries))
		for sig := range entries {
			sigs = append(sigs, sig)
		}
		sort.Slice(sigs, func(i, j int) bool { return entries[sigs[i]] < entries[sigs[j]] })
		for _, sig := range sigs {
			fmt.Fprintf(w, "  [%d] %s\n", entries[sig], sig)
		}
	}
	writeCommands("Commands", d.Commands)
	writeCommands("Responses", d.Responses)

	if len(d.Enumerations) > 0 {
		fmt.Fprintf(w, "\nEnumerations (%d):\n", len(d.Enumerations))
		names := make([]string, 0, len(d.Enumerations))
		for name := range d.Enumerations {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d values\n", name, len(d.Enumerations[name]))
		}
	}
}

// PrintDictionary writes the summary to stdout.
func (m *MCU) PrintDictionary() {
	m.WriteDictionary(os.Stdout)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// isZlib checks for a zlib header with the deflate method; plain JSON starts
// with '{'.
func isZlib(data []byte) bool {
	return len(data) >= 2 && data[0]&0x0F == 8 && (uint16(data[0])<<8|uint16(data[1]))%31 == 0
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

package core

import (
	"sort"
	"strings"
	"sync"

	"avradc/tinycompress"
)

// Dictionary describes the firmware to the host: version, constants,
// command/response formats and enumerations. It is served in chunks by the
// identify command as zlib-wrapped JSON, the form Klipper hosts expect.
//
// TODO: emit the dictionary into flash at build time; the cached SRAM copy
// takes most of the ATmega328P's 2 KiB.
type Dictionary struct {
	mu            sync.RWMutex
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	constants     map[string]string
	enumerations  map[string][]string
	plain         bool
	cached        []byte
}

var globalDictionary = NewDictionary(globalRegistry)

func NewDictionary(reg *CommandRegistry) *Dictionary {
	return &Dictionary{
		commandReg:    reg,
		version:       "avradc-0.1.0",
		buildVersions: "go-tinygo",
		constants:     make(map[string]string),
		enumerations:  make(map[string][]string),
	}
}

// RegisterConstant adds a constant to the global dictionary.
func RegisterConstant(name, value string) {
	globalDictionary.AddConstant(name, value)
}

// RegisterEnumeration adds an enumeration; each name's value is its index.
// Empty names are skipped.
func RegisterEnumeration(name string, values []string) {
	globalDictionary.AddEnumeration(name, values)
}

func (d *Dictionary) AddConstant(name, value string) {
	d.mu.Lock()
	d.constants[name] = value
	d.cached = nil
	d.mu.Unlock()
}

func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	d.enumerations[name] = values
	d.cached = nil
	d.mu.Unlock()
}

// SetCompression selects zlib-wrapped (the default) or plain JSON.
func (d *Dictionary) SetCompression(on bool) {
	d.mu.Lock()
	d.plain = !on
	d.cached = nil
	d.mu.Unlock()
}

func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	d.version = version
	d.cached = nil
	d.mu.Unlock()
}

// BuildDictionary renders and caches the JSON. Call it after every command
// is registered.
func (d *Dictionary) BuildDictionary() {
	d.mu.Lock()
	defer d.mu.Unlock()
	data := d.buildJSONLocked()
	if !d.plain {
		data = tinycompress.Encode(data)
	}
	d.cached = data
	DebugPrintln("[dict] built " + itoa(len(d.cached)) + " bytes")
}

// Generate returns the served bytes, building them if needed.
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cached
	d.mu.RUnlock()
	if cached == nil {
		d.BuildDictionary()
		d.mu.RLock()
		cached = d.cached
		d.mu.RUnlock()
	}
	return cached
}

// GetChunk returns up to count bytes starting at offset. Past the end it
// returns an empty slice, which tells the host it has everything.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	return data[offset:end]
}

// buildJSONLocked writes the dictionary by hand; encoding/json is too large
// for the AVR flash.
func (d *Dictionary) buildJSONLocked() []byte {
	var b strings.Builder

	b.WriteString(`{"version":`)
	writeJSONString(&b, d.version)
	b.WriteString(`,"build_versions":`)
	writeJSONString(&b, d.buildVersions)

	b.WriteString(`,"config":{`)
	for i, k := range sortedKeys(d.constants) {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSONString(&b, k)
		b.WriteByte(':')
		writeJSONString(&b, d.constants[k])
	}
	b.WriteByte('}')

	var commands, responses []*Command
	for _, c := range d.commandReg.Commands() {
		if c.Handler != nil {
			commands = append(commands, c)
		} else {
			responses = append(responses, c)
		}
	}
	b.WriteString(`,"commands":`)
	writeCommandMap(&b, commands)
	b.WriteString(`,"responses":`)
	writeCommandMap(&b, responses)

	b.WriteString(`,"enumerations":{`)
	names := make([]string, 0, len(d.enumerations))
	for k := range d.enumerations {
		names = append(names, k)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSONString(&b, name)
		b.WriteString(":{")
		first := true
		for j, v := range d.enumerations[name] {
			if v == "" {
				// gap in the numbering
				continue
			}
			if !first {
				b.WriteByte(',')
			}
			first = false
			writeJSONString(&b, v)
			b.WriteByte(':')
			b.WriteString(itoa(j))
		}
		b.WriteByte('}')
	}
	b.WriteString("}}")

	return []byte(b.String())
}

func writeCommandMap(b *strings.Builder, cmds []*Command) {
	b.WriteByte('{')
	for i, c := range cmds {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSONString(b, c.Signature())
		b.WriteByte(':')
		b.WriteString(itoa(int(c.ID)))
	}
	b.WriteByte('}')
}

// writeJSONString quotes s. Dictionary strings are ASCII, so only quotes and
// backslashes need escaping.
func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}

package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/shlex"

	"avradc/config"
	"avradc/core"
	"avradc/host/mcu"
	"avradc/host/serial"
	"avradc/host/virtual"
)

var (
	device     = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baud       = flag.Int("baud", 250000, "Baud rate")
	resetDelay = flag.Duration("reset-delay", 2*time.Second, "Wait after opening for the board to leave its bootloader")
	configFile = flag.String("config", "", "JSON ADC configuration to apply after connecting")
	sim        = flag.Bool("sim", false, "Use an in-process virtual MCU instead of a serial device")
	verbose    = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()

	fmt.Println("ADC Host - ATmega328P converter over the Klipper protocol")

	mcuConn := mcu.NewMCU()
	if *verbose {
		mcuConn.Log = os.Stderr
	}

	var err error
	if *sim {
		fmt.Println("Starting virtual MCU...")
		if *verbose {
			core.SetDebugWriter(func(s string) { fmt.Fprintln(os.Stderr, s) })
			core.SetDebugEnabled(true)
		}
		err = mcuConn.ConnectPort(virtual.New())
	} else {
		fmt.Printf("Connecting to MCU on %s...\n", *device)
		cfg := serial.DefaultConfig(*device)
		cfg.Baud = *baud
		cfg.ResetDelay = *resetDelay
		err = mcuConn.ConnectWithConfig(cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer mcuConn.Close()

	if err := mcuConn.RetrieveDictionary(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to retrieve dictionary: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Connected: %s\n", mcuConn.GetDictionary().Version)

	if *configFile != "" {
		cfg, err := config.LoadFile(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to load %s: %v\n", *configFile, err)
			os.Exit(1)
		}
		if err := mcuConn.ApplyConfig(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Applied %s\n", *configFile)
	}

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	if err := repl(mcuConn, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

// repl runs commands from in until EOF or quit.
func repl(m *mcu.MCU, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if isQuit(args[0]) {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}
		if err := runCommand(m, args, out); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func isQuit(cmd string) bool {
	return cmd == "quit" || cmd == "exit" || cmd == "q"
}

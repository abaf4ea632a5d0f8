// Package serial opens serial ports for the link layer.
package serial

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is used when Config.BaudRate is zero.
const DefaultBaudRate = 115200

// ReadTimeout is the read timeout set on opened ports, the link layer
// treats a timed out read as an idle line.
const ReadTimeout = 100 * time.Millisecond

// Config configures a serial port.
type Config struct {
	Port     string `yaml:"port" env:"SERIAL_PORT"`
	BaudRate int    `yaml:"baud_rate" env:"SERIAL_BAUD"`
}

// Open opens the port in 8N1 mode with ReadTimeout.
func Open(conf Config) (serial.Port, error) {
	baud := conf.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(conf.Port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", conf.Port, err)
	}
	if err = port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", conf.Port, err)
	}
	return port, nil
}

// List returns the names of available ports.
func List() ([]string, error) {
	return serial.GetPortsList()
}

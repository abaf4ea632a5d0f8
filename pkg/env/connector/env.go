// Package connector connects host tools to a feeder controller.
package connector

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"

	"github.com/golang/glog"

	"github.com/robotalks/feeder.go/pkg/client"
	"github.com/robotalks/feeder.go/pkg/env"
	fx "github.com/robotalks/feeder.go/pkg/framework"
	"github.com/robotalks/feeder.go/pkg/link"
	"github.com/robotalks/feeder.go/pkg/transport"
	"github.com/robotalks/feeder.go/pkg/transport/mqtt"
	"github.com/robotalks/feeder.go/pkg/transport/serial"
	"github.com/robotalks/feeder.go/pkg/transport/stream"
	"github.com/robotalks/feeder.go/pkg/transport/websocket"
)

// Config selects how to reach a controller. The first non-empty of
// Serial, Addr, WebSocketURL and MQTTBrokerURL is used.
type Config struct {
	Serial serial.Config `yaml:"serial"`
	Addr   string        `yaml:"addr" env:"FEEDER_ADDR"`
	// WebSocketURL e.g. ws://host:port/feeder
	WebSocketURL string `yaml:"websocket" env:"FEEDER_WS_URL"`
	// MQTTBrokerURL e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt" env:"FEEDER_MQTT_URL"`
	// Controller is the controller ID when connecting through MQTT.
	Controller string `yaml:"controller" env:"FEEDER_CONTROLLER"`
}

var defaultConfig = Config{
	MQTTBrokerURL: "mqtt://localhost:1883/",
}

func init() {
	if err := env.ParseEnv(&defaultConfig); err != nil {
		glog.Warningf("environment: %v", err)
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Serial.Port, "serial", defaultConfig.Serial.Port, "Serial port of the controller")
	flag.IntVar(&defaultConfig.Serial.BaudRate, "baud", defaultConfig.Serial.BaudRate, "Serial baud rate")
	flag.StringVar(&defaultConfig.Addr, "tcp", defaultConfig.Addr, "TCP address of the controller")
	flag.StringVar(&defaultConfig.WebSocketURL, "ws", defaultConfig.WebSocketURL, "Websocket URL of the controller")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.Controller, "controller", defaultConfig.Controller, "Controller ID on MQTT")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// ErrNoController is returned when MQTT is used without a controller ID.
var ErrNoController = errors.New("controller id must be specified")

// Connection is an established connection to a controller.
type Connection struct {
	*client.Conn
	Name string

	runners []fx.Runnable
	closer  io.Closer
	cancel  context.CancelFunc
	runner  *fx.Runner
}

// Connect connects to the controller and starts receiving responses.
func (c *Config) Connect(ctx context.Context) (*Connection, error) {
	conn := &Connection{}
	var rw transport.PacketReadWriter
	switch {
	case c.Serial.Port != "":
		port, err := serial.Open(c.Serial)
		if err != nil {
			return nil, err
		}
		ep := link.NewEndpoint(port)
		ep.FIFO.ReadTimeout = true
		conn.Name, conn.closer, rw = "serial:"+c.Serial.Port, port, ep
		conn.runners = append(conn.runners, fx.NamedRun("link", ep))
	case c.Addr != "":
		tcp, err := net.Dial("tcp", c.Addr)
		if err != nil {
			return nil, err
		}
		conn.Name, conn.closer, rw = "tcp:"+c.Addr, tcp, stream.New(tcp)
	case c.WebSocketURL != "":
		ws, err := websocket.Dial(c.WebSocketURL)
		if err != nil {
			return nil, err
		}
		conn.Name, conn.closer, rw = c.WebSocketURL, ws, ws
	case c.MQTTBrokerURL != "":
		if c.Controller == "" {
			return nil, ErrNoController
		}
		q, err := mqtt.NewQueueFromURL(c.MQTTBrokerURL)
		if err != nil {
			return nil, err
		}
		if err = q.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect %s: %w", c.MQTTBrokerURL, err)
		}
		mrw := mqtt.NewPacketReadWriter(q).ForHost(mqtt.Topics{Controller: c.Controller})
		conn.Name, conn.closer, rw = "mqtt:"+c.Controller, q, mrw
		conn.runners = append(conn.runners, fx.NamedRun("mqtt-link", mrw))
	default:
		return nil, fmt.Errorf("no controller address")
	}
	conn.Conn = client.NewConn(rw)
	conn.runners = append(conn.runners, fx.NamedRun("client", conn.Conn))

	runCtx, cancel := context.WithCancel(context.Background())
	conn.cancel = cancel
	conn.runner = fx.NewRunnerWith(runCtx).Go(conn.runners...)
	return conn, nil
}

// Close disconnects and waits for background runners.
func (c *Connection) Close() error {
	c.cancel()
	err := c.closer.Close()
	if werr := c.runner.Wait(); werr != nil {
		glog.V(2).Infof("%s: %v", c.Name, werr)
	}
	return err
}

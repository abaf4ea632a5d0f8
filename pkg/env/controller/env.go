// Package controller assembles a feeder controller from its configuration.
package controller

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/feeder.go/pkg/calibration"
	"github.com/robotalks/feeder.go/pkg/calibration/stormdb"
	"github.com/robotalks/feeder.go/pkg/dispatch"
	"github.com/robotalks/feeder.go/pkg/env"
	"github.com/robotalks/feeder.go/pkg/feeder"
	fx "github.com/robotalks/feeder.go/pkg/framework"
	"github.com/robotalks/feeder.go/pkg/link"
	"github.com/robotalks/feeder.go/pkg/motion/sim"
	"github.com/robotalks/feeder.go/pkg/telemetry"
	"github.com/robotalks/feeder.go/pkg/transport"
	"github.com/robotalks/feeder.go/pkg/transport/mqtt"
	"github.com/robotalks/feeder.go/pkg/transport/serial"
	"github.com/robotalks/feeder.go/pkg/transport/stream"
	"github.com/robotalks/feeder.go/pkg/transport/websocket"
)

// SimConfig configures the simulated motion drivers.
type SimConfig struct {
	StepDelay time.Duration `yaml:"step_delay" env:"STEP_DELAY"`
	HomeAt    int64         `yaml:"home_at" env:"HOME_AT"`
}

// Config provides the options of a controller.
type Config struct {
	ID          string  `yaml:"id" env:"FEEDER_ID"`
	Description string  `yaml:"description" env:"FEEDER_DESCRIPTION"`
	Feeders     []uint8 `yaml:"feeders" env:"FEEDER_IDS" envSeparator:","`

	// StorePath is the calibration database, in memory if empty.
	StorePath string `yaml:"store" env:"FEEDER_STORE"`
	// Listen is the TCP address accepting hosts.
	Listen string `yaml:"listen" env:"FEEDER_LISTEN"`
	// WebSocket is the HTTP address accepting websocket hosts.
	WebSocket string        `yaml:"websocket" env:"FEEDER_WS_LISTEN"`
	Serial    serial.Config `yaml:"serial"`
	// MQTTBrokerURL e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt" env:"FEEDER_MQTT_URL"`

	Timing feeder.Timing `yaml:"timing" envPrefix:"FEEDER_"`
	Sim    SimConfig     `yaml:"sim" envPrefix:"FEEDER_SIM_"`
}

var defaultConfig = Config{
	Feeders: []uint8{0},
	Timing:  feeder.DefaultTiming(),
	Sim:     SimConfig{StepDelay: 200 * time.Microsecond},
}

var configFile string

func init() {
	defaultConfig.ID = env.MachineID()
	if err := env.ParseEnv(&defaultConfig); err != nil {
		glog.Warningf("environment: %v", err)
	}
}

type feederList struct {
	ids *[]uint8
}

func (l feederList) String() string {
	if l.ids == nil {
		return ""
	}
	strs := make([]string, len(*l.ids))
	for n, id := range *l.ids {
		strs[n] = fmt.Sprint(id)
	}
	return strings.Join(strs, ",")
}

func (l feederList) Set(val string) error {
	var ids []uint8
	for _, s := range strings.Split(val, ",") {
		var id uint8
		if _, err := fmt.Sscan(strings.TrimSpace(s), &id); err != nil {
			return fmt.Errorf("invalid feeder id %q", s)
		}
		ids = append(ids, id)
	}
	*l.ids = ids
	return nil
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&configFile, "config", "", "YAML config file, applied before other flags")
	flag.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "Controller ID")
	flag.Var(feederList{&defaultConfig.Feeders}, "feeders", "Comma separated feeder IDs")
	flag.StringVar(&defaultConfig.StorePath, "store", defaultConfig.StorePath, "Calibration database, in memory if empty")
	flag.StringVar(&defaultConfig.Listen, "listen", defaultConfig.Listen, "TCP listen address")
	flag.StringVar(&defaultConfig.WebSocket, "ws", defaultConfig.WebSocket, "Websocket listen address")
	flag.StringVar(&defaultConfig.Serial.Port, "serial", defaultConfig.Serial.Port, "Serial port")
	flag.IntVar(&defaultConfig.Serial.BaudRate, "baud", defaultConfig.Serial.BaudRate, "Serial baud rate")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.DurationVar(&defaultConfig.Sim.StepDelay, "step-delay", defaultConfig.Sim.StepDelay, "Simulated step duration")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
// The file given by -config is loaded first, then flags set explicitly
// on the command line are applied again over it.
func NewConfig() (*Config, error) {
	conf := defaultConfig
	conf.Feeders = append([]uint8(nil), defaultConfig.Feeders...)
	if configFile == "" {
		return &conf, nil
	}
	if err := env.LoadFile(configFile, &conf); err != nil {
		return nil, err
	}
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" || flagErr != nil {
			return
		}
		if target := conf.flagTarget(f.Name); target != nil {
			flagErr = target.Set(f.Value.String())
		}
	})
	return &conf, flagErr
}

type stringValue struct{ p *string }

func (v stringValue) String() string     { return *v.p }
func (v stringValue) Set(s string) error { *v.p = s; return nil }

func (c *Config) flagTarget(name string) flag.Value {
	switch name {
	case "id":
		return stringValue{&c.ID}
	case "feeders":
		return feederList{&c.Feeders}
	case "store":
		return stringValue{&c.StorePath}
	case "listen":
		return stringValue{&c.Listen}
	case "ws":
		return stringValue{&c.WebSocket}
	case "serial":
		return stringValue{&c.Serial.Port}
	case "mqtt":
		return stringValue{&c.MQTTBrokerURL}
	}
	return nil
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("controller id must be specified")
	}
	if len(c.Feeders) == 0 {
		return fmt.Errorf("at least one feeder is required")
	}
	seen := make(map[uint8]bool)
	for _, id := range c.Feeders {
		if id == 0xff {
			return fmt.Errorf("feeder id 255 is reserved")
		}
		if seen[id] {
			return fmt.Errorf("duplicated feeder id %d", id)
		}
		seen[id] = true
	}
	return nil
}

// Env is a wired controller.
type Env struct {
	Config     *Config
	Store      *calibration.Store
	Dispatcher *dispatch.Dispatcher
	Drivers    map[uint8]*sim.Driver
	Announcer  *mqtt.Announcer

	runners  []fx.Runnable
	closers  []io.Closer
	listener net.Listener
	wsLn     net.Listener
}

// NewEnv creates Env from config.
func (c *Config) NewEnv() (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	e := &Env{
		Config:     c,
		Dispatcher: dispatch.New(),
		Drivers:    make(map[uint8]*sim.Driver),
	}
	if err := e.setupStore(); err != nil {
		return nil, err
	}
	for _, id := range c.Feeders {
		drv := sim.New(c.Sim.StepDelay, c.Sim.HomeAt)
		m := feeder.NewMachine(id, drv, e.Store, c.Timing)
		m.Version = env.Version
		e.Drivers[id] = drv
		e.runners = append(e.runners, e.Dispatcher.NewTask(m))
	}
	e.runners = append(e.runners, fx.NamedRun("dispatcher", e.Dispatcher))

	if c.Serial.Port != "" {
		if err := e.setupSerial(); err != nil {
			e.Close()
			return nil, err
		}
	}
	if c.Listen != "" {
		if err := e.setupTCP(); err != nil {
			e.Close()
			return nil, err
		}
	}
	if c.WebSocket != "" {
		if err := e.setupWebSocket(); err != nil {
			e.Close()
			return nil, err
		}
	}
	if c.MQTTBrokerURL != "" {
		if err := e.setupMQTT(); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	e, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return e
}

func (e *Env) setupStore() error {
	if e.Config.StorePath == "" {
		e.Store = calibration.NewStore(calibration.NewMemBackend())
		return nil
	}
	db, err := stormdb.Open(e.Config.StorePath)
	if err != nil {
		return err
	}
	e.closers = append(e.closers, db)
	e.Store = calibration.NewStore(db)
	return nil
}

func (e *Env) setupSerial() error {
	port, err := serial.Open(e.Config.Serial)
	if err != nil {
		return err
	}
	e.closers = append(e.closers, port)
	ep := link.NewEndpoint(port)
	ep.FIFO.ReadTimeout = true
	e.runners = append(e.runners,
		fx.NamedRun("link", ep),
		fx.NamedRun("serial", e.serve(ep)))
	return nil
}

func (e *Env) setupTCP() error {
	ln, err := net.Listen("tcp", e.Config.Listen)
	if err != nil {
		return err
	}
	glog.Infof("listening on %s", ln.Addr())
	e.listener = ln
	e.closers = append(e.closers, ln)
	e.runners = append(e.runners, fx.NamedRun("tcp", fx.RunnableFunc(func(ctx context.Context) error {
		return fx.RunWithContextCloser(ctx, ln, func() error {
			for {
				conn, err := ln.Accept()
				if err != nil {
					return err
				}
				glog.Infof("host connected from %s", conn.RemoteAddr())
				go func() {
					rw := stream.New(conn)
					defer rw.Close()
					if err := fx.RunWithContextCloser(ctx, rw, func() error {
						return e.Dispatcher.Serve(ctx, rw)
					}); err != nil && ctx.Err() == nil {
						glog.Warningf("host %s: %v", conn.RemoteAddr(), err)
					}
				}()
			}
		})
	})))
	return nil
}

func (e *Env) setupWebSocket() error {
	ln, err := net.Listen("tcp", e.Config.WebSocket)
	if err != nil {
		return err
	}
	glog.Infof("websocket on %s%s", ln.Addr(), websocket.Path)
	e.wsLn = ln
	e.closers = append(e.closers, ln)
	e.runners = append(e.runners, fx.NamedRun("websocket", fx.RunnableFunc(func(ctx context.Context) error {
		mux := http.NewServeMux()
		mux.Handle(websocket.Path, websocket.Handler(func(rw *websocket.ReadWriter) error {
			return e.Dispatcher.Serve(ctx, rw)
		}))
		srv := &http.Server{Handler: mux}
		return fx.RunWithContextCancel(ctx, func() { srv.Close() }, func() error {
			return srv.Serve(ln)
		})
	})))
	return nil
}

func (e *Env) setupMQTT() error {
	meta := mqtt.Meta{
		ID:          e.Config.ID,
		Version:     env.Version,
		Description: e.Config.Description,
	}
	for _, id := range e.Config.Feeders {
		meta.Feeders = append(meta.Feeders, int(id))
	}
	a, err := mqtt.NewAnnouncer(e.Config.MQTTBrokerURL, meta)
	if err != nil {
		return fmt.Errorf("create MQTT announcer: %w", err)
	}
	e.Announcer = a
	e.Dispatcher.Observe(telemetry.NewPublisher(a.Queue, e.Config.ID))
	rw := mqtt.NewPacketReadWriter(a.Queue).ForController(a.Topics())
	e.runners = append(e.runners,
		fx.NamedRun("mqtt", a),
		fx.NamedRun("mqtt-link", rw),
		fx.NamedRun("mqtt-serve", e.serve(rw)))
	return nil
}

func (e *Env) serve(l transport.PacketReadWriter) fx.Runnable {
	return fx.RunnableFunc(func(ctx context.Context) error {
		return e.Dispatcher.Serve(ctx, l)
	})
}

// ListenAddr returns the TCP listen address, nil if not listening.
func (e *Env) ListenAddr() net.Addr {
	if e.listener == nil {
		return nil
	}
	return e.listener.Addr()
}

// WebSocketAddr returns the websocket listen address, nil if not listening.
func (e *Env) WebSocketAddr() net.Addr {
	if e.wsLn == nil {
		return nil
	}
	return e.wsLn.Addr()
}

// Runnables returns everything to run.
func (e *Env) Runnables() []fx.Runnable {
	return e.runners
}

// Close releases opened resources.
func (e *Env) Close() error {
	var errs fx.AggregatedError
	for n := len(e.closers) - 1; n >= 0; n-- {
		errs.Add(e.closers[n].Close())
	}
	e.closers = nil
	return errs.Aggregate()
}

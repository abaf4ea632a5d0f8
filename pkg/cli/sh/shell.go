// Package sh provides the interactive feeder shell.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/feeder.go/pkg/calibration"
	env "github.com/robotalks/feeder.go/pkg/env/connector"
	"github.com/robotalks/feeder.go/pkg/fixed"
	"github.com/robotalks/feeder.go/pkg/protocol"
	"github.com/robotalks/feeder.go/pkg/transport/mqtt"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool
	Timeout     time.Duration

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *env.Connection
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	timeout    = 10 * time.Second

	// commands
	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.DurationVar(&timeout, "timeout", timeout, "Command timeout.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     timeout,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// ResponseJSON is the JSON form of a response.
type ResponseJSON struct {
	Op        string               `json:"op"`
	Feeder    uint8                `json:"feeder"`
	Status    string               `json:"status"`
	Code      string               `json:"code,omitempty"`
	State     string               `json:"state"`
	Fault     string               `json:"fault,omitempty"`
	Position  string               `json:"position"`
	Remaining string               `json:"remaining,omitempty"`
	Profile   *calibration.Profile `json:"calibration,omitempty"`
	Version   string               `json:"version,omitempty"`
}

// NewResponseJSON converts a response.
func NewResponseJSON(r *protocol.Response) *ResponseJSON {
	out := &ResponseJSON{
		Op:       r.Op.String(),
		Feeder:   r.Feeder,
		Status:   r.Status.String(),
		State:    r.State.String(),
		Position: r.Position.String(),
		Profile:  r.Profile,
		Version:  r.Version,
	}
	if !r.IsAck() {
		out.Code = r.Code.String()
	}
	if r.State == protocol.StateFault {
		out.Fault = r.Fault.String()
	}
	if r.Op == protocol.OpGetStatus {
		out.Remaining = r.Remaining.String()
	}
	return out
}

// FormatResponse prints a response into friendly string for display.
func FormatResponse(r *protocol.Response) string {
	s := r.String()
	switch r.Op {
	case protocol.OpGetStatus:
		s += " remaining=" + r.Remaining.String()
	case protocol.OpIdentify:
		s += " version=" + r.Version
	case protocol.OpGetCalibration:
		if p := r.Profile; p != nil {
			for _, f := range calibration.Fields() {
				v, _ := p.Get(f)
				s += fmt.Sprintf("\n  %-16s %s", f, v)
			}
		}
	}
	return s
}

// Print prints a value as JSON or via fmt.
func (s *Shell) Print(c *ishell.Context, v interface{}, text string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// DoCommand runs a command and waits for result.
func DoCommand(c *ishell.Context, cmd protocol.Command) (*protocol.Response, error) {
	s := ShellFrom(c)
	if s.Conn == nil {
		err := fmt.Errorf("not connected")
		c.Err(err)
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	r, err := s.Conn.Do(ctx, cmd)
	if r != nil {
		s.Print(c, NewResponseJSON(r), FormatResponse(r))
	}
	if err != nil && r == nil {
		c.Err(err)
	}
	return r, err
}

// FeederArg parses the feeder id at args[n].
func FeederArg(args []string, n int) (uint8, error) {
	if len(args) <= n {
		return 0, fmt.Errorf("FEEDER required")
	}
	id, err := strconv.ParseUint(args[n], 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid FEEDER %q: %w", args[n], err)
	}
	return uint8(id), nil
}

// ValueArg parses the decimal value at args[n].
func ValueArg(args []string, n int, name string) (fixed.Value, error) {
	if len(args) <= n {
		return 0, fmt.Errorf("%s required", name)
	}
	v, err := fixed.Parse(args[n])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, args[n], err)
	}
	return v, nil
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// DiscoverControllers lists controllers announced on MQTT.
func (s *Shell) DiscoverControllers() ([]mqtt.Meta, error) {
	q, err := mqtt.NewQueueFromURL(s.Config.MQTTBrokerURL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	if err = q.Connect(ctx); err != nil {
		return nil, err
	}
	defer q.Close()
	return mqtt.Discover(ctx, q, time.Second)
}

// SelectController discovers controllers and asks for a choice.
func (s *Shell) SelectController() (*mqtt.Meta, error) {
	found, err := s.DiscoverControllers()
	if err != nil || len(found) == 0 {
		return nil, err
	}
	var index int
	if len(found) > 1 {
		if !s.Interactive {
			return nil, fmt.Errorf("more than 1 controllers discovered in non-interactive mode")
		}
		items := make([]string, len(found))
		for n, meta := range found {
			items[n] = FormatMeta(meta)
		}
		index = s.Shell.MultiChoice(items, "Which one to connect?")
	}
	return &found[index], nil
}

// FormatMeta prints a controller description.
func FormatMeta(meta mqtt.Meta) string {
	s := fmt.Sprintf("%s v%s feeders=%v", meta.ID, meta.Version, meta.Feeders)
	if meta.Description != "" {
		s += ": " + meta.Description
	}
	return s
}

// Connect connects the controller using conf.
func (s *Shell) Connect(conf *env.Config) error {
	conn, err := conf.Connect(context.Background())
	if err != nil {
		return err
	}
	s.Disconnect()
	s.Conn = conn
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", conn.Name))
	return nil
}

// Disconnect disconnects current controller.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Close()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && (s.Config.Serial.Port != "" || s.Config.Addr != "" ||
		s.Config.WebSocketURL != "" || s.Config.Controller != "") {
		if s.Interactive {
			s.Shell.Println("Connecting ...")
		}
		if err := s.Connect(s.Config); err != nil {
			log.Fatalf("connect failed: %v", err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// DiscoverCmd discovers controllers.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			found, err := s.DiscoverControllers()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if len(found) == 0 {
					found = []mqtt.Meta{}
				}
				s.Print(c, found, "")
				return
			}
			if len(found) == 0 {
				c.Println("No controllers found")
				return
			}
			for _, meta := range found {
				c.Println(FormatMeta(meta))
			}
		},
	}

	// ConnectCmd connects a controller announced on MQTT.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[CONTROLLER-ID]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			conf := *s.Config
			conf.Serial.Port, conf.Addr, conf.WebSocketURL = "", "", ""
			if len(c.Args) > 0 {
				conf.Controller = c.Args[0]
			} else {
				meta, err := s.SelectController()
				if err != nil {
					c.Err(err)
					return
				}
				if meta == nil {
					c.Err(fmt.Errorf("no controller discovered"))
					return
				}
				conf.Controller = meta.ID
			}
			if err := s.Connect(&conf); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current controller.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}

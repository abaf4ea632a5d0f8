// Package feeder adds feeder commands to the shell.
package feeder

import (
	"context"
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/feeder.go/pkg/calibration"
	"github.com/robotalks/feeder.go/pkg/cli/sh"
	"github.com/robotalks/feeder.go/pkg/fixed"
	"github.com/robotalks/feeder.go/pkg/protocol"
)

// headerOnly builds a command without operands.
func headerOnly(build func(protocol.Header) protocol.Command) func(c *ishell.Context) {
	return sh.MustBeConnected(func(c *ishell.Context) {
		id, err := sh.FeederArg(c.Args, 0)
		if err != nil {
			c.Err(err)
			return
		}
		sh.DoCommand(c, build(protocol.Header{Feeder: id}))
	})
}

// distance builds a command with a distance operand.
func distance(build func(protocol.Header, fixed.Value) protocol.Command) func(c *ishell.Context) {
	return sh.MustBeConnected(func(c *ishell.Context) {
		id, err := sh.FeederArg(c.Args, 0)
		if err != nil {
			c.Err(err)
			return
		}
		d, err := sh.ValueArg(c.Args, 1, "DISTANCE")
		if err != nil {
			c.Err(err)
			return
		}
		sh.DoCommand(c, build(protocol.Header{Feeder: id}, d))
	})
}

var (
	// AdvanceCmd exposes Advance.
	AdvanceCmd = ishell.Cmd{
		Name:    "advance",
		Aliases: []string{"adv"},
		Help:    "FEEDER DISTANCE",
		Func: distance(func(h protocol.Header, d fixed.Value) protocol.Command {
			return protocol.Advance{Header: h, Distance: d}
		}),
	}

	// RetractCmd exposes Retract.
	RetractCmd = ishell.Cmd{
		Name:    "retract",
		Aliases: []string{"ret"},
		Help:    "FEEDER DISTANCE",
		Func: distance(func(h protocol.Header, d fixed.Value) protocol.Command {
			return protocol.Retract{Header: h, Distance: d}
		}),
	}

	// FeedCmd exposes Feed.
	FeedCmd = ishell.Cmd{
		Name:    "feed",
		Aliases: []string{"f"},
		Help:    "FEEDER",
		Func: headerOnly(func(h protocol.Header) protocol.Command {
			return protocol.Feed{Header: h}
		}),
	}

	// HomeCmd exposes Home.
	HomeCmd = ishell.Cmd{
		Name: "home",
		Help: "FEEDER",
		Func: headerOnly(func(h protocol.Header) protocol.Command {
			return protocol.Home{Header: h}
		}),
	}

	// StopCmd exposes Stop.
	StopCmd = ishell.Cmd{
		Name: "stop",
		Help: "FEEDER",
		Func: headerOnly(func(h protocol.Header) protocol.Command {
			return protocol.Stop{Header: h}
		}),
	}

	// ResetCmd exposes Reset.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "FEEDER",
		Func: headerOnly(func(h protocol.Header) protocol.Command {
			return protocol.Reset{Header: h}
		}),
	}

	// StatusCmd exposes GetStatus.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "FEEDER",
		Func: headerOnly(func(h protocol.Header) protocol.Command {
			return protocol.GetStatus{Header: h}
		}),
	}

	// CalGetCmd exposes GetCalibration.
	CalGetCmd = ishell.Cmd{
		Name:    "cal.get",
		Aliases: []string{"calg"},
		Help:    "FEEDER",
		Func: headerOnly(func(h protocol.Header) protocol.Command {
			return protocol.GetCalibration{Header: h}
		}),
	}

	// CalSetCmd exposes SetCalibration.
	CalSetCmd = ishell.Cmd{
		Name:    "cal.set",
		Aliases: []string{"cals"},
		Help:    "FEEDER FIELD VALUE, FIELD is one of steps_per_unit, backlash_offset, feed_pitch, max_travel, retry_limit",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			id, err := sh.FeederArg(c.Args, 0)
			if err != nil {
				c.Err(err)
				return
			}
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("FIELD required"))
				return
			}
			field, err := calibration.ParseField(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			val, err := sh.ValueArg(c.Args, 2, "VALUE")
			if err != nil {
				c.Err(err)
				return
			}
			sh.DoCommand(c, protocol.SetCalibration{Header: protocol.Header{Feeder: id}, Field: field, Value: val})
		}),
	}

	// VersionCmd exposes Identify, optionally checking a version constraint.
	VersionCmd = ishell.Cmd{
		Name:    "version",
		Aliases: []string{"ver"},
		Help:    "FEEDER [CONSTRAINT]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			id, err := sh.FeederArg(c.Args, 0)
			if err != nil {
				c.Err(err)
				return
			}
			if len(c.Args) < 2 {
				sh.DoCommand(c, protocol.Identify{Header: protocol.Header{Feeder: id}})
				return
			}
			s := sh.ShellFrom(c)
			ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
			defer cancel()
			ver, err := s.Conn.CheckVersion(ctx, id, c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, map[string]string{"version": ver.String()}, ver.String()+" OK")
		}),
	}
)

func init() {
	sh.AddCmds(
		&AdvanceCmd,
		&RetractCmd,
		&FeedCmd,
		&HomeCmd,
		&StopCmd,
		&ResetCmd,
		&StatusCmd,
		&CalGetCmd,
		&CalSetCmd,
		&VersionCmd,
	)
}

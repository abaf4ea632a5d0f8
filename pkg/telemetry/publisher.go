// Package telemetry publishes feeder status to MQTT.
package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/feeder.go/pkg/fixed"
	pb "github.com/robotalks/feeder.go/pkg/proto/feeder/v1"
	"github.com/robotalks/feeder.go/pkg/protocol"
	"github.com/robotalks/feeder.go/pkg/transport/mqtt"
)

// Publisher publishes the status carried by every response, retained,
// one topic per feeder. It implements dispatch.ResponseObserver.
type Publisher struct {
	Topics  mqtt.Topics
	Publish func(topic string, payload []byte)
	Now     func() time.Time
}

// NewPublisher creates a Publisher on q.
func NewPublisher(q *mqtt.Queue, controller string) *Publisher {
	return &Publisher{
		Topics: mqtt.Topics{Controller: controller},
		Publish: func(topic string, payload []byte) {
			q.PubWith(topic, payload, 1, true)
		},
		Now: time.Now,
	}
}

// StatusOf converts a response into a status message.
func StatusOf(controller string, r *protocol.Response, at time.Time) *pb.FeederStatus {
	return &pb.FeederStatus{
		Controller:    controller,
		Feeder:        uint32(r.Feeder),
		State:         uint32(r.State),
		Fault:         uint32(r.Fault),
		Op:            uint32(r.Op),
		Code:          uint32(r.Code),
		PositionMilli: r.Position.Milli(),
		TimestampMs:   at.UnixNano() / int64(time.Millisecond),
		Ack:           r.IsAck(),
	}
}

// ObserveResponse implements dispatch.ResponseObserver.
func (p *Publisher) ObserveResponse(r *protocol.Response) {
	if r.Feeder == protocol.BroadcastFeeder || !r.Op.IsKnown() {
		return
	}
	payload, err := proto.Marshal(StatusOf(p.Topics.Controller, r, p.Now()))
	if err != nil {
		glog.Errorf("telemetry: encode %s: %v", r, err)
		return
	}
	p.Publish(p.Topics.Status(r.Feeder), payload)
}

// Decode parses a status payload.
func Decode(payload []byte) (*pb.FeederStatus, error) {
	var s pb.FeederStatus
	if err := proto.Unmarshal(payload, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Subscribe calls fn for every status published by any controller.
func Subscribe(q *mqtt.Queue, fn func(*pb.FeederStatus)) *mqtt.Subscription {
	return q.Sub(mqtt.StatusWildcard, mqtt.Handler(func(topic string, payload []byte) {
		if len(payload) == 0 {
			return
		}
		s, err := Decode(payload)
		if err != nil {
			glog.Warningf("%s: %v", topic, err)
			return
		}
		fn(s)
	}))
}

// Format renders a status for humans.
func Format(s *pb.FeederStatus) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s/%d %s", s.Controller, s.Feeder, protocol.StateTag(s.State))
	if protocol.StateTag(s.State) == protocol.StateFault {
		fmt.Fprintf(&sb, "(%s)", protocol.FaultReason(s.Fault))
	}
	fmt.Fprintf(&sb, " pos=%s last=%s", fixed.FromMilli(s.PositionMilli), protocol.Opcode(s.Op))
	if !s.Ack {
		fmt.Fprintf(&sb, " nack(%s)", protocol.ErrorCode(s.Code))
	}
	return sb.String()
}

package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang/glog"
)

// Meta describes a controller, published retained on Topics.Meta.
type Meta struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	Feeders     []int  `json:"feeders"`
	Description string `json:"description,omitempty"`
}

// Announcer keeps the controller Meta published while it runs.
// The broker clears it through the last will when the connection drops.
type Announcer struct {
	Queue *Queue
	Meta  Meta
}

// NewAnnouncer creates a Queue from brokerURL announcing meta.
func NewAnnouncer(brokerURL string, meta Meta) (*Announcer, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	topics := Topics{Controller: meta.ID}
	opts.SetBinaryWill(topicPrefix+topics.Meta(), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("feeder:" + meta.ID)
	}
	a := &Announcer{Queue: NewQueue(opts, topicPrefix), Meta: meta}
	a.Queue.OnConnect = func(*Queue) { a.publish() }
	return a, nil
}

// Topics returns the topics of the announced controller.
func (a *Announcer) Topics() Topics {
	return Topics{Controller: a.Meta.ID}
}

// Run implements Runnable.
func (a *Announcer) Run(ctx context.Context) error {
	if err := a.Queue.Connect(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.Queue.PubWith(a.Topics().Meta(), nil, 1, true).WaitTimeout(time.Second)
	a.Queue.Close()
	return ctx.Err()
}

func (a *Announcer) publish() {
	payload, err := json.Marshal(&a.Meta)
	if err != nil {
		glog.Errorf("encode meta: %v", err)
		return
	}
	a.Queue.PubWith(a.Topics().Meta(), payload, 1, true)
}

// Discover collects the Meta of controllers until timeout.
func Discover(ctx context.Context, q *Queue, timeout time.Duration) ([]Meta, error) {
	metaCh := make(chan Meta, 16)
	sub := q.Sub(MetaWildcard, Handler(func(topic string, payload []byte) {
		if len(payload) == 0 || len(strings.Split(topic, "/")) != 3 {
			return
		}
		var meta Meta
		if err := json.Unmarshal(payload, &meta); err != nil {
			glog.Warningf("%s: bad meta: %v", topic, err)
			return
		}
		select {
		case metaCh <- meta:
		case <-time.After(time.Second):
		}
	}))
	defer sub.Close()

	var found []Meta
	expire := time.After(timeout)
	for {
		select {
		case meta := <-metaCh:
			found = append(found, meta)
		case <-expire:
			return found, nil
		case <-ctx.Done():
			return found, ctx.Err()
		}
	}
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	pb "github.com/robotalks/feeder.go/pkg/proto/feeder/v1"
	"github.com/robotalks/feeder.go/pkg/telemetry"
	"github.com/robotalks/feeder.go/pkg/transport/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/"
)

func init() {
	if val := os.Getenv("FEEDER_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}

	q.Sub(mqtt.MetaWildcard, mqtt.Handler(func(topic string, payload []byte) {
		if len(payload) == 0 {
			log.Printf("%s: offline", strings.TrimSuffix(topic, "/meta"))
			return
		}
		log.Printf("%s: %s", topic, string(payload))
	}))
	telemetry.Subscribe(q, func(s *pb.FeederStatus) {
		log.Println(telemetry.Format(s))
	})
	if err = q.Connect(context.Background()); err != nil {
		log.Fatalln(err)
	}
	<-(chan struct{})(nil)
}

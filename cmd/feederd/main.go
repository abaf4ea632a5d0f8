package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"
	"time"

	"github.com/golang/glog"

	env "github.com/robotalks/feeder.go/pkg/env/controller"
	fx "github.com/robotalks/feeder.go/pkg/framework"
)

const stopTimeout = 5 * time.Second

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf, err := env.NewConfig()
	if err != nil {
		log.Fatalln(err)
	}
	e := conf.MustNewEnv()
	defer e.Close()
	glog.Infof("controller %s: feeders %v", conf.ID, conf.Feeders)

	if err := fx.NewRunner().WithStopTimeout(stopTimeout).HandleSignals().Go(e.Runnables()...).Wait(); err != nil {
		glog.Error(err)
	}
}

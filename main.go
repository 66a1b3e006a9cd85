package main

import (
	"flag"

	"github.com/golang/glog"
	"github.com/spf13/viper"

	"github.com/xsp-lib/xsp/config"
	"github.com/xsp-lib/xsp/router"
	"github.com/xsp-lib/xsp/server"
)

// Rev holds the binary revision string.
// Set at build time with:
//    go build -ldflags "-X main.Rev=`git rev-parse --short HEAD`"
var Rev string

func main() {
	flag.Parse() // required for glog flags and testing package flags

	cfg, err := loadConfig()
	if err != nil {
		glog.Exitf("Configuration could not be loaded or did not pass validation: %v", err)
	}

	if err := serve(cfg); err != nil {
		glog.Exitf("xsp failed: %v", err)
	}
}

const configFileName = "xsp"

func loadConfig() (*config.Configuration, error) {
	v := viper.New()
	config.SetupViper(v, configFileName)
	return config.New(v)
}

func serve(cfg *config.Configuration) error {
	glog.Infof("xsp revision: %s", Rev)
	cfg.LogGeneralInfo()

	r, err := router.New(cfg)
	if err != nil {
		return err
	}
	defer r.Shutdown()

	return server.Listen(cfg, router.SupportCORS(r), router.Admin())
}

// Package main for the storegate gateway daemon.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/NVIDIA/storegate/3rdparty/glog"
	"github.com/NVIDIA/storegate/cmn"
	"github.com/NVIDIA/storegate/gateway"
)

var configPath = flag.String("config", "", "path to a JSON config overlay")

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	conf, err := cmn.LoadConfig(*configPath)
	if err != nil {
		glog.Errorf("storegated: failed to load config: %v", err)
		return 1
	}
	cmn.GCO.Put(conf)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	daemon, err := gateway.NewDaemon(ctx, conf)
	if err != nil {
		glog.Errorf("storegated: failed to initialize daemon: %v", err)
		return 1
	}

	if err := daemon.ListenAndServe(ctx); err != nil {
		glog.Errorf("storegated: server exited with error: %v", err)
		return 1
	}
	return 0
}

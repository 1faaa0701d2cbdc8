// Package debug provides assert helpers used throughout storegate:
// invariant violations panic loudly in development rather than being
// silently tolerated.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import (
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/NVIDIA/storegate/3rdparty/glog"
)

func _panic(a ...interface{}) {
	msg := "DEBUG PANIC: " + fmt.Sprint(a...)
	glog.Errorf("%s", msg)
	panic(msg)
}

func Assert(cond bool, a ...interface{}) {
	if !cond {
		_panic(a...)
	}
}

func Assertf(cond bool, f string, a ...interface{}) {
	if !cond {
		_panic(fmt.Sprintf(f, a...))
	}
}

func AssertNoErr(err error) {
	if err != nil {
		_panic(err)
	}
}

// Handlers exposes pprof diagnostics, mounted by the gateway under
// /debug/pprof when enabled.
func Handlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"/debug/pprof/":     pprof.Index,
		"/debug/pprof/cmdline": pprof.Cmdline,
		"/debug/pprof/profile": pprof.Profile,
		"/debug/pprof/symbol":  pprof.Symbol,
		"/debug/pprof/heap":    pprof.Handler("heap").ServeHTTP,
		"/debug/pprof/goroutine": pprof.Handler("goroutine").ServeHTTP,
	}
}

// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package mux_test

import (
	"log"
	"net/http"

	gorillamux "github.com/gorilla/mux"

	muxprof "github.com/vmprof/vmprof-go/contrib/gorilla/mux"
	"github.com/vmprof/vmprof-go/profiler"
)

func handler(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("Hello World!\n"))
}

func Example() {
	m, err := profiler.New(profiler.WithWeb(true))
	if err != nil {
		log.Fatal(err)
	}
	mux := muxprof.NewRouter(m)
	mux.HandleFunc("/", handler)
	http.ListenAndServe(":8080", mux)
}

func ExampleMiddleware() {
	m, err := profiler.New()
	if err != nil {
		log.Fatal(err)
	}
	r := gorillamux.NewRouter()
	r.HandleFunc("/", handler)
	r.Use(muxprof.Middleware(m))
	http.ListenAndServe(":8080", r)
}

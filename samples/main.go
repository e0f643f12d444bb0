// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campusrallye/auth-bridge-go/auth"
	"github.com/campusrallye/auth-bridge-go/credential"
	"github.com/campusrallye/auth-bridge-go/datalayer"
	"github.com/campusrallye/auth-bridge-go/env"
	"github.com/campusrallye/auth-bridge-go/httpclient"
	"github.com/campusrallye/auth-bridge-go/profile"
)

// Demo server wiring the request gate and the profile bootstrapper.
func main() {
	cfg := env.FromEnv()
	client := httpclient.DefaultHTTPClient()

	minter, err := credential.NewMinter(cfg)
	if err != nil {
		log.Fatal(err)
	}
	store, err := datalayer.NewClient(cfg, minter, client)
	if err != nil {
		log.Fatal(err)
	}
	bootstrapper := profile.NewBootstrapper(store, cfg)

	registry := prometheus.NewRegistry()
	gate := auth.NewMiddleware(cfg, client, auth.Options{
		Collector:    auth.NewCollector(registry),
		SkipPatterns: []string{"/", "/favicon.ico", "/static/*", "/metrics"},
	})

	r := mux.NewRouter()
	r.Use(gate.GateHandler)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.HandleFunc("/access-denied", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "access denied", http.StatusForbidden)
	})
	r.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		claims := auth.ClaimsFromCtx(r)
		prof, err := bootstrapper.EnsureProfile(r.Context(), claims.Subject, claims.Email, claims.Roles, true)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = fmt.Fprintf(w, "hello %s (admin: %v)\n", prof.UserID, prof.IsAdmin())
	}).Methods(http.MethodGet)

	address := ":8080"
	log.Println("Starting server on address", address)
	if err := http.ListenAndServe(address, handlers.LoggingHandler(os.Stdout, r)); err != nil {
		log.Fatal(err)
	}
}

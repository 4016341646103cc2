// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package router

import (
	"net/http"
	"strings"

	"codeberg.org/phixiv/phixiv/server/middleware"
	"codeberg.org/phixiv/phixiv/server/utils"
)

// Router wraps http.ServeMux and provides middleware chaining functionality.
//
// Requests whose host starts with a registered subdomain label, e.g. "i."
// in "i.phixiv.net", are served by that subdomain's mux instead.
type Router struct {
	*http.ServeMux

	subdomains  map[string]*http.ServeMux
	middlewares []middleware.Middleware
}

// NewRouter creates a new Router instance.
func NewRouter() *Router {
	return &Router{
		ServeMux:   http.NewServeMux(),
		subdomains: make(map[string]*http.ServeMux),
	}
}

// Use adds a middleware to the router's chain.
func (router *Router) Use(middleware middleware.Middleware) {
	router.middlewares = append(router.middlewares, middleware)
}

// Subdomain returns the mux for hosts whose first label is label, creating it if needed.
func (router *Router) Subdomain(label string) *http.ServeMux {
	mux, ok := router.subdomains[label]
	if !ok {
		mux = http.NewServeMux()
		router.subdomains[label] = mux
	}

	return mux
}

// muxFor picks the mux for the request host.
func (router *Router) muxFor(r *http.Request) http.Handler {
	label, _, found := strings.Cut(utils.RequestHost(r), ".")
	if found {
		if mux, ok := router.subdomains[label]; ok {
			return mux
		}
	}

	return router.ServeMux
}

// runs router.middlewares[i] and every thereafter
func (router *Router) serve(i int, w http.ResponseWriter, r *http.Request) {
	if i < len(router.middlewares) {
		router.middlewares[i](w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			router.serve(i+1, w, r)
		}))
	} else {
		router.muxFor(r).ServeHTTP(w, r)
	}
}

// runs all middleware
func (router *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	router.serve(0, w, r)
}

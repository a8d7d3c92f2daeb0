// Package server hosts the canvasflow gateway: the HTTP server manager
// and the handlers bridging catalog selections into the delivery
// channels, plus the websocket feed for remote canvas clients.
package server

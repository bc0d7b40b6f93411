// Package session implements the realtime session layer between the control
// dashboard and the simulation backend: a single logical WebSocket connection
// kept alive across network interruptions, with structured-message
// serialization, fan-out to independent consumers, bounded outbound buffering,
// and request/response correlation over the broadcast channel.
package session

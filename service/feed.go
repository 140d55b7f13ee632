package service

import "github.com/boubou-paradis/photojet-sub002/ws"

// Feed is where approval and presence events go. Satisfied by *ws.Hub;
// tests plug in a recorder.
type Feed interface {
	Publish(sessionID string, e ws.Event)
}

// NopFeed drops every event. Used when a caller doesn't care about
// broadcasting, e.g. one-off admin tooling.
type NopFeed struct{}

func (NopFeed) Publish(string, ws.Event) {}

package controller

import (
	"github.com/sharetube/syncwatch/internal/domain"
	"github.com/sharetube/syncwatch/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw(), c.rateLimitWSMw())
	mux.OnError(c.handleWSError)

	// room
	wsrouter.Handle(mux, domain.EventJoinRoom, c.handleJoinRoom)
	wsrouter.Handle(mux, domain.EventRequestHost, c.handleRequestHost)

	// player
	wsrouter.Handle(mux, domain.EventSetVideo, c.handleLoadVideo)
	wsrouter.Handle(mux, domain.EventLoadVideo, c.handleLoadVideo)
	wsrouter.Handle(mux, domain.EventControl, c.handleControl)

	// clock
	wsrouter.Handle(mux, domain.EventTimePing, c.handleTimePing)

	return mux
}

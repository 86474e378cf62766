package controller

import (
	"github.com/sharetube/syncroom/internal/protocol"
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	r := wsrouter.New()
	r.Use(c.wsRequestIdWSMw(), c.loggerWSMw(), c.validateWSMw())
	r.SetErrorHandler(c.handleWSError)

	wsrouter.Handle(r, protocol.TypeAlive, c.handleAlive)
	wsrouter.Handle(r, protocol.TypeCreateRoom, c.handleCreateRoom)
	wsrouter.Handle(r, protocol.TypeJoinRoom, c.handleJoinRoom)
	wsrouter.Handle(r, protocol.TypeLeaveRoom, c.handleLeaveRoom)
	wsrouter.Handle(r, protocol.TypeGetState, c.handleGetState)
	wsrouter.Handle(r, protocol.TypePlaybackUpdate, c.handlePlaybackUpdate)
	wsrouter.Handle(r, protocol.TypeAdStarted, c.handleAdStarted)
	wsrouter.Handle(r, protocol.TypeAdFinished, c.handleAdFinished)

	return r
}

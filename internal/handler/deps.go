/*
Package handler provides the HTTP handlers and routing for the
SkyMessage server: REST authentication and chat management, presigned
attachment URLs, and the WebSocket upgrade for the live path.
*/
package handler

import (
	"skymessage/internal/app/chat"
	"skymessage/internal/app/storage"
	"skymessage/internal/app/store"
	"skymessage/internal/configs"
)

// AppDeps bundles everything the handlers need.
type AppDeps struct {
	Config         *configs.AppConfig
	Store          *store.Store
	StorageService storage.Service
	Dispatcher     *chat.Dispatcher
	Relay          *chat.Relay
}

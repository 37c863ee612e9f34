package http

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"social-chat/internal/infrastructure/auth"
	cacheport "social-chat/internal/infrastructure/cache/port"
	qport "social-chat/internal/infrastructure/queue/port"
	"social-chat/internal/infrastructure/realtime"
	"social-chat/internal/pkg/chat/presentation/controller"
	repository "social-chat/internal/pkg/chat/persistence/repository/port"
)

// Deps bundles everything the chat endpoints need. Cache and Queue may be nil;
// the affected features degrade (presence reads offline, purges run inline).
type Deps struct {
	Store     repository.MessageStore
	Directory repository.ConversationDirectory
	Hub       *realtime.Hub
	Cache     cacheport.Cache
	Queue     qport.Client
	JWTSecret string
	Log       *logrus.Logger
}

// RegisterRoutes builds per-endpoint controllers and binds them under the
// given group. REST endpoints sit behind the auth middleware; the websocket
// endpoint authenticates its own handshake token.
func RegisterRoutes(g *gin.RouterGroup, d Deps) {
	listCtl := controller.NewListConversationsController(d.Directory, d.Cache)
	startCtl := controller.NewStartConversationController(d.Directory)
	getCtl := controller.NewGetConversationController(d.Store, d.Directory, d.Hub)
	deleteCtl := controller.NewDeleteConversationController(d.Store, d.Directory, d.Queue)
	sendCtl := controller.NewSendMessageController(d.Store, d.Directory, d.Hub)
	socketCtl := controller.NewChatSocketController(d.Hub, d.Store, d.Directory, d.Cache, d.JWTSecret, d.Log)

	authed := g.Group("", auth.Middleware(d.JWTSecret))
	authed.GET("/conversations", listCtl.Handle())
	authed.POST("/conversations", startCtl.Handle())
	authed.GET("/conversations/:conversationId", getCtl.Handle())
	authed.DELETE("/conversations/:conversationId", deleteCtl.Handle())
	authed.POST("/messages", sendCtl.Handle())

	g.GET("/ws", socketCtl.Handle())
}

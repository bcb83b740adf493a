package server

import (
	"context"
	"time"

	"rosegold/market-service/internal/auth"
	"rosegold/market-service/internal/chat"
	"rosegold/market-service/internal/service"
	"rosegold/market-service/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Deps is everything the HTTP/WebSocket layer needs, wired once in main.
type Deps struct {
	Accounts service.AccountService
	Items    service.ItemService
	Chat     service.ChatService
	Registry *chat.Registry
	Tokens   *auth.TokenManager
	Images   *storage.ImageStore

	PushTimeout time.Duration
	SendBuffer  int

	Logger *logrus.Logger
}

// Server exposes the REST routes and the chat websocket.
type Server struct {
	app      *fiber.App
	accounts service.AccountService
	items    service.ItemService
	chat     service.ChatService
	registry *chat.Registry
	tokens   *auth.TokenManager
	images   *storage.ImageStore
	validate *validator.Validate
	logger   *logrus.Logger

	pushTimeout time.Duration
	sendBuffer  int
}

func New(deps Deps) *Server {
	s := &Server{
		app:         fiber.New(fiber.Config{BodyLimit: 100 * 1024 * 1024}),
		accounts:    deps.Accounts,
		items:       deps.Items,
		chat:        deps.Chat,
		registry:    deps.Registry,
		tokens:      deps.Tokens,
		images:      deps.Images,
		validate:    validator.New(),
		logger:      deps.Logger,
		pushTimeout: deps.PushTimeout,
		sendBuffer:  deps.SendBuffer,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Static("/images", s.images.Root())

	users := s.app.Group("/users")
	users.Post("/register-user", s.handleRegisterUser)
	users.Post("/confirm-account", s.handleConfirmAccount)
	users.Post("/login", s.handleLogin)
	users.Post("/refresh-token", s.handleRefreshToken)
	users.Get("/check-username", s.handleCheckUsername)
	users.Post("/forgot-password-step-one", s.handleForgotPassword)
	users.Post("/check-sec-code", s.handleCheckResetCode)
	users.Post("/forgot-password-reset", s.handleResetPassword)
	users.Get("/change-username", s.requireAuth, s.handleChangeUsername)
	users.Post("/change-avatar", s.requireAuth, s.handleChangeAvatar)
	users.Post("/report-user", s.requireAuth, s.handleReportUser)
	users.Post("/register-device", s.requireAuth, s.handleRegisterDevice)
	users.Post("/email-support", s.requireAuth, s.handleEmailSupport)
	users.Get("/user-items", s.requireAuth, s.handleUserItems)
	users.Get("/items", s.requireAuth, s.handleItemsForAccount)
	users.Get("/address-details", s.requireAuth, s.handleAddressDetails)
	users.Delete("/delete-user", s.requireAuth, s.handleDeleteUser)

	items := s.app.Group("/item-handler", s.requireAuth)
	items.Post("/add-items", s.handleAddItem)
	items.Post("/delete-items", s.handleDeleteItems)
	items.Delete("/delete-item", s.handleDeleteItem)
	items.Get("/item-details-for-edit", s.handleItemDetails)
	items.Post("/edit-item", s.handleEditItem)
	items.Post("/edit-item-categories", s.handleEditItemCategories)
	items.Post("/mark-picked-up", s.handleMarkPickedUp)

	chatGroup := s.app.Group("/chat-handler")
	chatGroup.Get("/latest-messages", s.requireAuth, s.handleLatestMessages)
	chatGroup.Get("/get-chat-thread", s.requireAuth, s.handleChatThread)
	chatGroup.Get("/get-unread-messages", s.requireAuth, s.handleUnreadMessages)
	chatGroup.Delete("/delete-from-unread", s.requireAuth, s.handleClearUnread)
	chatGroup.Get("/get-username", s.requireAuth, s.handleGetUsername)
	chatGroup.Get("/ws", s.upgradeSocket, s.socketHandler())
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the fiber app for handler tests.
func (s *Server) App() *fiber.App {
	return s.app
}

package route

import (
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"

	httpHandler "simbi-market/internal/delivery/http/handler"
	"simbi-market/internal/delivery/http/middleware"
	"simbi-market/internal/gateway"
	"simbi-market/internal/jobs"
	mongorepo "simbi-market/internal/repository/mongodb"
	repo "simbi-market/internal/repository/postgresql"
	service "simbi-market/internal/service/postgresql"
)

func SetupRoute(app *gin.Engine, db *sql.DB, mongoClient *mongo.Client, redisClient *redis.Client, payments gateway.PaymentGateway) {
	// --- REPOSITORIES ---
	store := repo.NewStore(db)
	talkRepo := repo.NewTalkRepository(db)
	offerRepo := repo.NewOfferRepository(db)
	orderRepo := repo.NewOrderRepository(db)
	ledgerRepo := repo.NewLedgerRepository(db)
	serviceRepo := repo.NewServiceRepository(db)
	userRepo := repo.NewUserRepository(db)
	ratingRepo := repo.NewRatingRepository(db)
	notiRepo := mongorepo.NewNotificationRepository(mongoClient)

	queue := jobs.NewRedisQueue(redisClient)

	// --- SERVICES ---
	offerValidator := service.NewOfferValidator(serviceRepo, ledgerRepo)
	orderValidator := service.NewOrderValidator(serviceRepo, ledgerRepo)

	talkService := service.NewTalkService(store, talkRepo, userRepo)
	offerService := service.NewOfferService(store, offerRepo, talkRepo, ledgerRepo, userRepo, offerValidator, payments, queue, notiRepo)
	orderService := service.NewOrderService(store, orderRepo, talkRepo, ledgerRepo, orderValidator, payments, queue, notiRepo)
	holdService := service.NewHoldService(store, offerRepo, orderRepo, talkRepo, ledgerRepo)
	ratingService := service.NewRatingService(store, ratingRepo, ledgerRepo, queue)

	// --- HANDLERS ---
	talkHandler := httpHandler.NewTalkHandler(talkService, offerService, orderService, holdService, ratingService)

	api := app.Group("/api")

	talks := api.Group("/talks", middleware.AuthRequired())
	talks.POST("", talkHandler.CreateTalk)

	// Inbox bookkeeping
	talks.POST("/read", talkHandler.MarkRead)
	talks.POST("/unread", talkHandler.MarkUnread)
	talks.POST("/archive", talkHandler.Archive)
	talks.POST("/unarchive", talkHandler.Unarchive)
	talks.GET("/unread_count", talkHandler.UnreadCount)
	talks.GET("/tab_counts", talkHandler.TabCounts)

	// Conversation
	talks.POST("/:id/message", talkHandler.SendMessage)

	// Offer lifecycle
	talks.POST("/:id/offer", talkHandler.CreateOffer)
	talks.POST("/:id/accept", talkHandler.AcceptOffer)
	talks.POST("/:id/close", talkHandler.CloseOffer)
	talks.POST("/:id/confirm", talkHandler.ConfirmOffer)
	talks.POST("/:id/cancel", talkHandler.CancelOffer)

	// Order lifecycle
	talks.POST("/:id/order", talkHandler.CreateOrder)
	talks.POST("/:id/accept_order", talkHandler.AcceptOrder)
	talks.POST("/:id/cancel_order", talkHandler.CancelOrder)
	talks.POST("/:id/confirm_delivery", talkHandler.ConfirmDelivery)

	// Disputes
	talks.POST("/:id/on_hold", talkHandler.OnHold)
	talks.POST("/:id/off_hold", talkHandler.OffHold)

	// Feedback
	talks.POST("/:id/rate", talkHandler.Rate)
	talks.POST("/:id/review", talkHandler.CreateReview)
	talks.PUT("/:id/review", talkHandler.UpdateReview)
}

// server/internal/api/routes/routes.go
package routes

import (
	"site-procurement-api-server/config"
	"site-procurement-api-server/internal/api/handlers"
	"site-procurement-api-server/internal/api/middleware"
	"site-procurement-api-server/internal/engine"
	"site-procurement-api-server/internal/models"
	"site-procurement-api-server/internal/socket"
	"site-procurement-api-server/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SetupRouter wires the handlers and role-guarded route groups.
func SetupRouter(
	eng *engine.Engine,
	st store.Store,
	cfg config.Config,
	wsHub *socket.Hub,
	log zerolog.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORS.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORS.AllowOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	jwtSecret := []byte(cfg.JWT.Secret)

	requestHandler := &handlers.RequestHandler{Engine: eng}
	poHandler := &handlers.POHandler{Engine: eng}
	deliveryHandler := &handlers.DeliveryHandler{Engine: eng}
	userHandler := &handlers.UserHandler{Store: st, Cfg: cfg}
	webSocketHandler := &handlers.WebSocketHandler{Hub: wsHub, JWTSecret: jwtSecret, Log: log}

	apiV1 := router.Group("/api/v1")
	{
		// WebSocket route (token via query parameter)
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", userHandler.Login)
		}

		// Admin routes, superadmin only
		admin := apiV1.Group("/admin")
		admin.Use(middleware.Authenticate(jwtSecret))
		admin.Use(middleware.Authorize(models.RoleSuperadmin))
		{
			admin.POST("/users", userHandler.CreateUser)
		}

		// Business routes, any known role
		businessRoutes := apiV1.Group("/")
		businessRoutes.Use(middleware.Authenticate(jwtSecret))
		businessRoutes.Use(middleware.Authorize(
			models.RoleSuperadmin, models.RoleRequester, models.RoleReviewer,
			models.RoleProcurement, models.RoleStorekeeper,
		))
		{
			requests := businessRoutes.Group("/requests")
			{
				requests.GET("/", requestHandler.ListRequests)
				requests.GET("/:id", requestHandler.GetRequest)
				requests.GET("/:id/audit", requestHandler.GetRequestAudit)

				// Creation and draft editing, requesters only
				requesterRoutes := requests.Group("/")
				requesterRoutes.Use(middleware.Authorize(models.RoleSuperadmin, models.RoleRequester))
				{
					requesterRoutes.POST("/", requestHandler.CreateRequest)
					requesterRoutes.POST("/:id/items", requestHandler.AddItem)
					requesterRoutes.PUT("/:id/items/:itemID", requestHandler.UpdateItem)
					requesterRoutes.POST("/:id/submit", requestHandler.Submit)
					requesterRoutes.POST("/:id/items/:itemID/resubmit", requestHandler.ResubmitItem)
				}

				// Per-item review, reviewers only
				reviewerRoutes := requests.Group("/")
				reviewerRoutes.Use(middleware.Authorize(models.RoleSuperadmin, models.RoleReviewer))
				{
					reviewerRoutes.POST("/:id/items/:itemID/decide", requestHandler.DecideItem)
				}
			}

			projects := businessRoutes.Group("/projects")
			projects.Use(middleware.Authorize(models.RoleSuperadmin, models.RoleProcurement))
			{
				projects.GET("/:projectID/claimable-items", poHandler.GetClaimableItems)
			}

			purchaseOrders := businessRoutes.Group("/purchase-orders")
			{
				purchaseOrders.GET("/", poHandler.ListPurchaseOrders)
				purchaseOrders.GET("/:id", poHandler.GetPurchaseOrder)
				purchaseOrders.GET("/:id/deliveries", deliveryHandler.ListDeliveries)

				procurementRoutes := purchaseOrders.Group("/")
				procurementRoutes.Use(middleware.Authorize(models.RoleSuperadmin, models.RoleProcurement))
				{
					procurementRoutes.POST("/", poHandler.CreatePurchaseOrder)
				}

				storekeeperRoutes := purchaseOrders.Group("/")
				storekeeperRoutes.Use(middleware.Authorize(models.RoleSuperadmin, models.RoleStorekeeper))
				{
					storekeeperRoutes.POST("/:id/deliveries", deliveryHandler.RecordDelivery)
				}
			}
		}
	}

	return router
}

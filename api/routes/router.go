package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/packrescue/packrescue-backend/api/controllers"
	webhookcontrollers "github.com/packrescue/packrescue-backend/api/controllers/webhooks"
	"github.com/packrescue/packrescue-backend/api/middleware"
	cartsvc "github.com/packrescue/packrescue-backend/internal/cart"
	packsvc "github.com/packrescue/packrescue-backend/internal/packs"
	paysvc "github.com/packrescue/packrescue-backend/internal/payments"
	"github.com/packrescue/packrescue-backend/internal/reservation"
	mpwebhook "github.com/packrescue/packrescue-backend/internal/webhooks/mercadopago"
	"github.com/packrescue/packrescue-backend/pkg/config"
	"github.com/packrescue/packrescue-backend/pkg/enums"
	"github.com/packrescue/packrescue-backend/pkg/logger"
	"github.com/packrescue/packrescue-backend/pkg/redis"
)

type Services struct {
	Packs        packsvc.Service
	Reservations reservation.Service
	Cart         cartsvc.Service
	Payments     paysvc.Service
	Webhooks     *mpwebhook.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger controllers.Pinger,
	redisClient *redis.Client,
	services Services,
) http.Handler {
	var idemStore redis.IdempotencyStore
	var redisPinger controllers.Pinger
	if redisClient != nil {
		idemStore = redisClient
		redisPinger = redisClient
	}
	var webhookSvc webhookcontrollers.MercadoPagoWebhookService
	if services.Webhooks != nil {
		webhookSvc = services.Webhooks
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbPinger,
			"redis":    redisPinger,
		}))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/mercadopago", webhookcontrollers.MercadoPagoWebhook(webhookSvc, logg))
	})

	// Public catalogue, no auth.
	r.Get("/api/v1/packs", controllers.ListPacks(services.Packs, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Post("/packs/{packID}/reserve", controllers.ReservePack(services.Reservations, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(services.Cart, logg))
			r.Post("/items", controllers.AddCartItem(services.Cart, logg))
			r.Delete("/items/{packID}", controllers.RemoveCartItem(services.Cart, logg))
			r.Delete("/", controllers.ClearCart(services.Cart, logg))
			r.Post("/checkout", controllers.CheckoutCart(services.Reservations, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(services.Reservations, logg))
			r.Get("/{orderID}", controllers.GetOrder(services.Reservations, logg))
			r.Post("/{orderID}/cancel", controllers.CancelOrder(services.Reservations, logg))
			r.Post("/{orderID}/redeem", controllers.RedeemOrder(services.Reservations, logg))
			r.Post("/{orderID}/payments", controllers.StartPayment(services.Payments, logg))
			r.Get("/{orderID}/payments/status", controllers.PaymentStatus(services.Payments, logg))

			if cfg.FeatureFlags.MockPayments && !cfg.App.IsProd() {
				r.Post("/{orderID}/payments/approve-mock", controllers.ApprovePaymentMock(services.Payments, logg))
			}
		})

		r.Route("/merchant", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, string(enums.UserRoleMerchant), string(enums.UserRoleAdmin)))
			r.Route("/packs", func(r chi.Router) {
				r.Get("/", controllers.ListMerchantPacks(services.Packs, logg))
				r.Post("/", controllers.CreatePack(services.Packs, logg))
				r.Delete("/{packID}", controllers.DeletePack(services.Packs, logg))
			})
		})
	})

	return r
}

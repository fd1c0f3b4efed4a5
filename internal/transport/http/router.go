package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/verify-emails/internal/config"
	"github.com/verify-emails/internal/transport/http/handler"
	appmiddleware "github.com/verify-emails/internal/transport/http/middleware"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	healthH := handler.NewHealthHandler()
	registerH := handler.NewRegisterHandler(deps.Registration)
	welcomeH := handler.NewWelcomeHandler(deps.Welcome)
	verifyH := handler.NewVerifyHandler(deps.Verification, cfg.VerifyBase)
	emailH := handler.NewVerificationEmailHandler(deps.VerificationEmail)

	routes := func(r chi.Router) {
		r.Get("/health", healthH.Health)
		r.Get("/health-check/{action}", healthH.Ping)

		r.With(appmiddleware.NoStore).Get("/verify", verifyH.Verify)

		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.RequireJSON(maxBodyBytes))
			r.Use(appmiddleware.NoStore)

			r.Post("/register", registerH.Register)
			r.Post("/send-welcome", welcomeH.Send)
			r.Post("/send-verification", emailH.Send)
		})
	}

	routes(r)
	// Links already sent out point at /api/verify, so every route is mounted there too.
	r.Route("/api", routes)

	return r
}

package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/stagebook/backend/internal/handler"    // handlers that implement business logic
	"github.com/stagebook/backend/internal/middleware" // middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring systems poll this to verify the
	// service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication routes.  Unauthenticated
// operations live under /v1/auth; there is no refresh token flow, access
// tokens are short-lived and clients log in again when they expire.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
}

// RegisterPublic registers unauthenticated browse endpoints.  These routes
// return sanitized schedule data for guest users and apply no JWT or role
// middleware.
func RegisterPublic(e *echo.Echo, s *handler.ScheduleHandler) {
	e.GET("/v1/schedules/:id", s.Get)
}

// RegisterReservations registers the customer-facing reservation routes.
// All of them require a valid access token; any authenticated role may
// create and list its own reservations.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("USER", "MANAGER", "ADMIN"))

	// Admit the caller onto a schedule or time slot.
	g.POST("/reservations", h.Create)
	// List the caller's own reservations, newest first.
	g.GET("/my-reservations", h.MyReservations)
}

// RegisterManager registers lifecycle routes restricted to managers and
// admins: payment confirmation, cancellation, check-in and per-schedule
// listings.  Ownership of the specific schedule is enforced by the
// booking engine; the role middleware only keeps plain users out.
func RegisterManager(e *echo.Echo, h *handler.ManagerHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("MANAGER", "ADMIN"))

	g.GET("/schedules/:id/reservations", h.ListBySchedule)
	g.POST("/reservations/:id/confirm-payment", h.ConfirmPayment)
	g.DELETE("/reservations/:id", h.Cancel)
	g.POST("/reservations/:id/enter", h.Enter)
	g.POST("/reservations/qr/:token", h.EnterByQR)
}

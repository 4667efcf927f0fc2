// Package middleware authenticates requests and guards root-only routes.
//
// AuthMiddleware accepts either "Authorization: Bearer <access token>" issued
// by the identity provider or the connect.sid session cookie set by /login.
// Bearer requests resolve the agent by the token's e-mail, creating it on
// first sight. The resolved *auth.AuthContext is stored under
// contextkeys.AuthKey.
//
//	authMW := middleware.NewAuthMiddleware(verifier, sessionManager, directory, rootEmail)
//	api := router.NewRoute().Subrouter()
//	api.Use(authMW.Handler)
//	api.Handle("/agent/admin", middleware.RequireRoot(listAgents))
//
// RateLimiter throttles /login per client address.
package middleware

// Package api is the JSON HTTP surface of the identity service.
//
// Routes are registered on a gorilla/mux router. Everything except /login
// and /logout sits behind the authentication middleware, which accepts a
// bearer access token or the connect.sid session cookie. Root-only routes
// (/agent/admin, /organization/admin, /team/admin, DELETE /agent/{id}) are
// additionally wrapped in middleware.RequireRoot.
//
// Domain errors are translated by an httputil.ErrorMapper:
//
//	not found              404
//	validation             400
//	duplicate name         409
//	creator / permission   403
//	anything else          500
//
// Error bodies are {"error": "<message>"}.
//
// Renaming an organization or team re-upserts its pending invitations under
// the new name; deleting one withdraws them.
package api

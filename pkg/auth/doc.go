// Package auth verifies the identity of callers.
//
// # Overview
//
// Authentication is delegated to an external OpenID Connect provider. Clients
// present the provider's access token as a bearer token; TokenVerifier checks
// its signature against the provider's JSON Web Key Set (discovered from
// <issuer>/.well-known/openid-configuration) along with the issuer, audience
// and expiry. The e-mail claim identifies the agent. When the token carries
// none, the provider's userinfo endpoint is asked with the same token.
//
//	verifier, err := auth.NewTokenVerifier(ctx, auth.Config{
//		IssuerURL: "https://identity.example.com/",
//		Audience:  "https://api.example.com",
//	})
//	claims, err := verifier.Verify(ctx, rawToken)
//
// # Secrets
//
// SecretGenerator issues the random values the service hands out itself:
// session identifiers and client application secrets. Secrets are returned
// once and stored as SHA-256 hashes:
//
//	secret, hash, err := auth.NewSecretGenerator().GenerateSecret()
//	// secret: idn_xxx (give to the owner, display once)
//	// hash: SHA256(secret) (store in database)
//
// # Authorization Context
//
// The middleware stores an AuthContext in every authenticated request:
//
//	type AuthContext struct {
//		Agent     *agents.Agent
//		Subject   string
//		SessionID string
//		IsSuper   bool
//	}
package auth

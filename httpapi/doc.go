// Package httpapi binds the authcore Engine to JSON over HTTP with chi.
//
// Public routes: POST /auth/register, /auth/login, /auth/refresh and
// /auth/mfa/verify. Routes behind the bearer guard: POST /auth/mfa/setup,
// /auth/logout, /mfa/disable, /mfa/backup-codes and GET /auth/me.
//
// Error bodies are {"error": "<code>", "message": "<text>"}; the code is
// stable, the message is not.
package httpapi

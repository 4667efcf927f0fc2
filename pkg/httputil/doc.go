// Package httputil provides the JSON request and response helpers and the
// generic middleware shared by every HTTP handler.
//
// Errors are always answered as {"error": "<message>"}. Handlers translate
// domain errors with an ErrorMapper:
//
//	var errs = httputil.ErrorMapper{
//		{Err: orgs.ErrOrganizationNotFound, Status: http.StatusNotFound},
//		{Err: orgs.ErrDuplicateName, Status: http.StatusConflict},
//	}
//	errs.Write(w, r, err)
//
// Middleware:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
package httputil

// Package httputil holds the JSON response helpers and middleware of the watch
// server.
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//	)(router)
//
//	httputil.WriteSuccess(w, report)
//	httputil.WriteUnavailable(w, "no successful run yet")
package httputil

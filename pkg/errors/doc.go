// Package errors provides structured error types for better observability
// and programmatic error handling across the application.
//
// Example usage:
//
//	err := errors.WrapWithContext(
//	    errors.ErrCodeUnauthorized,
//	    "failed to connect to the cluster",
//	    cause,
//	    map[string]interface{}{
//	        "kubeconfig": kubeconfig,
//	    },
//	)
package errors

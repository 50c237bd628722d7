// Package gateway wraps the gateway HTTP API in typed calls.
//
// Every call goes through an apiclient Sender, so credentials, request ids
// and the refresh-and-retry cycle are handled below this package. Calls
// return (T, error); a non-nil error from a backend failure is an
// *apiclient.Error and matches apiclient.ErrAuthFailure, ErrClientError,
// ErrServerError or ErrTransport with errors.Is.
//
// # Idempotent Mutations
//
// Book, CreateCheckout and CancelSubscription take an action name. The key
// for an action stays the same across retries until the backend answers with
// success or a 4xx, so re-submitting after a timeout or a 5xx cannot create a
// second appointment or checkout.
//
//	action := ids.NewAction("book")
//	booking, err := api.Book(ctx, action, req)
//	if errors.Is(err, apiclient.ErrTransport) {
//		booking, err = api.Book(ctx, action, req) // same Idempotency-Key
//	}
//
// A 409 from Book means the slot overlaps an existing appointment; it is a
// client error and must not be retried blindly.
package gateway

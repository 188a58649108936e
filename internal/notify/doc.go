// Package notify turns one inbound send request into deliveries.
//
// A Service resolves the topic's owner and push subscriptions, normalizes the
// request body into an Envelope, and hands it to a Dispatcher which makes one
// delivery attempt per subscription. Every attempt is isolated: a failing
// subscription shows up as a failed Outcome and never stops the others. The
// email path resolves the same owner and sends one message to the account's
// address.
package notify

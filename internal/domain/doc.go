// Package domain holds the value types shared by the store, the session
// registry, the coordinator and the UI host: brokers, subscription history,
// active subscriptions, messages and tab status. It also owns the parsing
// rules for user input (QoS, port, required fields).
package domain

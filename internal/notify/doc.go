// Package notify turns logical settings changes into config_changed events
// and hands them to a subscriber without ever blocking the producer.
package notify

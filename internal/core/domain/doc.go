// Package domain defines the core domain models for Drawhub.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling: history messages, history
// indices, invites, and the structured error taxonomy shared by the
// history core and its storage backends.
package domain

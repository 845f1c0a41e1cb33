// Package actor carries the principal responsible for an operation through
// context.Context so ledger, audit and receipt rows can be attributed.
package actor

import (
	"context"
	"strconv"
)

// Kind classifies who initiated an operation
type Kind string

const (
	KindSystem  Kind = "system"
	KindUser    Kind = "user"
	KindService Kind = "service"
)

// Actor identifies the initiator of an operation
type Actor struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// System is used whenever no human initiator is present
var System = Actor{Kind: KindSystem, ID: "system", Name: "system"}

// User builds a human actor from an authenticated identity
func User(id uint, name string) Actor {
	return Actor{Kind: KindUser, ID: strconv.FormatUint(uint64(id), 10), Name: name}
}

// Service builds an actor for an integration client such as the POS backend
func Service(client string) Actor {
	return Actor{Kind: KindService, ID: client, Name: client}
}

func (a Actor) IsSystem() bool {
	return a.Kind == KindSystem
}

func (a Actor) String() string {
	return string(a.Kind) + ":" + a.ID
}

type ctxKey struct{}

// WithActor stores a in ctx
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the actor stored in ctx, or System
func FromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(ctxKey{}).(Actor); ok && a.ID != "" {
		return a
	}
	return System
}

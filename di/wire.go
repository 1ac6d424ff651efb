//go:build wireinject
// +build wireinject

package di

import (
	"context"
	"huddle/internal"

	"github.com/google/wire"
)

// InitializeApp declares the graph; wire generates the real body in wire_gen.go.
func InitializeApp(ctx context.Context, config internal.Config) (*App, func(), error) {
	wire.Build(
		ProviderSet,
		wire.Struct(new(App), "*"),
	)
	return &App{}, nil, nil
}

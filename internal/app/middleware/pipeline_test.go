package middleware_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"dmchat/internal/app/commands"
	"dmchat/internal/app/middleware"
)

type greetCommand struct {
	Name string `validate:"required,max=5"`
}

func (greetCommand) Key() string { return "test.greet" }

func TestValidationStopsInvalidCommands(t *testing.T) {
	req := require.New(t)
	bus := commands.NewInMemoryBus()
	calls := 0
	commands.RegisterHandler[greetCommand, string](bus, commands.HandlerFunc[greetCommand, string](
		func(ctx context.Context, cmd greetCommand) (string, error) {
			calls++
			return "hi " + cmd.Name, nil
		}))
	pipeline := middleware.ChainCommands(bus,
		middleware.Logging(nil),
		middleware.Validation(middleware.NewStructValidator()),
	)

	out, err := commands.Dispatch[greetCommand, string](context.Background(), pipeline, greetCommand{Name: "ann"})
	req.NoError(err)
	req.Equal("hi ann", out)

	_, err = commands.Dispatch[greetCommand, string](context.Background(), pipeline, greetCommand{})
	req.ErrorIs(err, middleware.ErrInvalidInput)
	var verr *middleware.ValidationError
	req.True(errors.As(err, &verr))
	req.Equal("Name", verr.Fields[0].Field)
	req.Equal("required", verr.Fields[0].Rule)

	_, err = commands.Dispatch[greetCommand, string](context.Background(), pipeline, greetCommand{Name: "toolong"})
	req.ErrorIs(err, middleware.ErrInvalidInput)
	req.Equal(1, calls)
}

type unknownCommand struct{}

func (unknownCommand) Key() string { return "test.unknown" }

func TestDispatchUnknownCommand(t *testing.T) {
	req := require.New(t)
	_, err := commands.Dispatch[unknownCommand, string](context.Background(), commands.NewInMemoryBus(), unknownCommand{})
	req.ErrorIs(err, commands.ErrHandlerNotFound)

	_, err = commands.Dispatch[unknownCommand, string](context.Background(), nil, unknownCommand{})
	req.ErrorIs(err, commands.ErrNilBus)
}

package pollengine

import (
	"log/slog"

	httpadapter "pollapp/contexts/polling/poll-engine/adapters/http"
	"pollapp/contexts/polling/poll-engine/adapters/memory"
	"pollapp/contexts/polling/poll-engine/application/commands"
	"pollapp/contexts/polling/poll-engine/application/queries"
	"pollapp/contexts/polling/poll-engine/domain/entities"
	"pollapp/contexts/polling/poll-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Polls  ports.PollRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	pollUseCase := commands.PollUseCase{
		Polls:  deps.Polls,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	voteUseCase := commands.VoteUseCase{
		Polls:  deps.Polls,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	pollQueries := queries.PollQueries{
		Polls: deps.Polls,
	}
	return Module{
		Handler: httpadapter.Handler{
			Polls:  pollUseCase,
			Votes:  voteUseCase,
			Reads:  pollQueries,
			Clock:  deps.Clock,
			Logger: deps.Logger,
		},
	}
}

func NewInMemoryModule(seed []entities.Poll, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Polls:  store,
		Outbox: store,
		Clock:  store,
		IDGen:  store,
		Logger: logger,
	})
	module.Store = store
	return module
}

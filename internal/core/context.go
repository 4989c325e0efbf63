package core

import "context"

type contextKey string

const (
	actorIDContextKey  contextKey = "actorID"
	scenarioContextKey contextKey = "scenario"
	iterationKey       contextKey = "iteration"
)

func ContextWithActorID(ctx context.Context, actorID int) context.Context {
	return context.WithValue(ctx, actorIDContextKey, actorID)
}

func ActorIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(actorIDContextKey).(int); ok {
		return id
	}
	return 0
}

// ContextWithScenario tags calls made under ctx with a scenario name.
func ContextWithScenario(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, scenarioContextKey, name)
}

func ScenarioFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(scenarioContextKey).(string); ok {
		return name
	}
	return ""
}

// ContextWithIteration records the zero-based iteration of the running actor.
func ContextWithIteration(ctx context.Context, iteration int) context.Context {
	return context.WithValue(ctx, iterationKey, iteration)
}

func IterationFromContext(ctx context.Context) int {
	if it, ok := ctx.Value(iterationKey).(int); ok {
		return it
	}
	return 0
}

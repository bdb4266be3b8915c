package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	triplinecommand "github.com/goliatone/go-tripline/command"
	triplinequery "github.com/goliatone/go-tripline/query"
	"github.com/goliatone/go-tripline/ratelimit"
	sqlstore "github.com/goliatone/go-tripline/store/sql"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeCommandFunc[T any](handler command.CommandFunc[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(handler, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func SubscribeQueryFunc[T any, R any](qry command.QueryFunc[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// Handlers names the Tripline dependencies to expose on the dispatcher. Nil
// fields are skipped. A RateLimitState reader that can also list throttled
// keys gets the throttled-keys query as well.
type Handlers struct {
	Risk           triplinecommand.RiskService
	Webhooks       triplinecommand.WebhookVerifier
	WebhookEvents  triplinequery.WebhookEventReader
	RateLimitState triplinequery.RateLimitStateReader
}

// Registration holds the subscriptions created by RegisterTripline.
type Registration struct {
	subscriptions []commanddispatcher.Subscription
}

func (r *Registration) Unsubscribe() {
	if r == nil {
		return
	}
	for _, subscription := range r.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	r.subscriptions = nil
}

func (r *Registration) Len() int {
	if r == nil {
		return 0
	}
	return len(r.subscriptions)
}

// RegisterTripline registers and subscribes the evaluate, screen and webhook
// commands plus the archive queries. On failure every subscription made so
// far is removed.
func RegisterTripline(
	adapter *RegistryAdapter,
	handlers Handlers,
	runnerOpts ...runner.Option,
) (*Registration, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	reg := &Registration{}
	track := func(subscription commanddispatcher.Subscription, err error) error {
		if err != nil {
			reg.Unsubscribe()
			return err
		}
		reg.subscriptions = append(reg.subscriptions, subscription)
		return nil
	}

	if handlers.Risk != nil {
		if err := track(RegisterAndSubscribe[triplinecommand.EvaluateMessage](adapter, triplinecommand.NewEvaluateCommand(handlers.Risk), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := track(RegisterAndSubscribe[triplinecommand.ScreenMessage](adapter, triplinecommand.NewScreenCommand(handlers.Risk), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.Webhooks != nil {
		if err := track(RegisterAndSubscribe[triplinecommand.VerifyWebhookMessage](adapter, triplinecommand.NewVerifyWebhookCommand(handlers.Webhooks), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if handlers.WebhookEvents != nil {
		if err := track(RegisterAndSubscribeQuery[triplinequery.GetWebhookEventMessage, sqlstore.WebhookEvent](
			adapter, triplinequery.NewGetWebhookEventQuery(handlers.WebhookEvents), runnerOpts...,
		)); err != nil {
			return nil, err
		}
		if err := track(RegisterAndSubscribeQuery[triplinequery.ListWebhookEventsMessage, sqlstore.WebhookEventPage](
			adapter, triplinequery.NewListWebhookEventsQuery(handlers.WebhookEvents), runnerOpts...,
		)); err != nil {
			return nil, err
		}
	}
	if handlers.RateLimitState != nil {
		if err := track(RegisterAndSubscribeQuery[triplinequery.GetRateLimitStateMessage, ratelimit.State](
			adapter, triplinequery.NewGetRateLimitStateQuery(handlers.RateLimitState), runnerOpts...,
		)); err != nil {
			return nil, err
		}
		if lister, ok := handlers.RateLimitState.(triplinequery.ThrottledStateLister); ok {
			if err := track(RegisterAndSubscribeQuery[triplinequery.ListThrottledMessage, []ratelimit.State](
				adapter, triplinequery.NewListThrottledQuery(lister), runnerOpts...,
			)); err != nil {
				return nil, err
			}
		}
	}
	if reg.Len() == 0 {
		return nil, fmt.Errorf("gocommand: no tripline handlers configured")
	}
	return reg, nil
}

// Package rules holds the fixed rule catalog: the table the flow-graph
// builder runs over every compilation, mapping selectors to typed,
// tagged graph node kinds.
package rules

import (
	"sync"

	"github.com/r-dutton/flowlens/internal/match"
	"github.com/r-dutton/flowlens/internal/selector"
	"github.com/r-dutton/flowlens/internal/tree"
)

// Type is the node "type" a matching rule assigns, e.g.
// "endpoint.controller_action".
type Type string

const (
	TypeController        Type = "endpoint.controller"
	TypeControllerAction  Type = "endpoint.controller_action"
	TypeService           Type = "service.service"
	TypeRepository        Type = "data.repository"
	TypeDTO               Type = "data.dto"
	TypeEntity            Type = "data.entity"
	TypeDbContext         Type = "data.db_context"
	TypeValidator         Type = "validation.validator"
	TypeCqrsHandler       Type = "cqrs.handler"
	TypeCqrsPipeline      Type = "cqrs.pipeline_behavior"
	TypeCqrsRequest       Type = "cqrs.request"
	TypeCqrsNotification  Type = "cqrs.notification"
	TypePublisher         Type = "messaging.publisher"
	TypeBackgroundService Type = "infra.background_service"
	TypeOptions           Type = "config.options"
	TypeCache             Type = "infra.cache"
	TypeHttpClient        Type = "infra.http_client"
	TypeHttpCall          Type = "infra.http_call"
	TypeGuard             Type = "security.guard"
	TypeMapper            Type = "data.mapper"
	TypeAuthorization     Type = "security.authorization"
)

// Extractor derives typed properties from a match, given the provider
// for further symbol/attribute lookups.
type Extractor func(prov tree.Provider, m match.Match) map[string]any

// Rule is one entry of the catalog: a selector, the node type/tags it
// assigns on match, and an optional property extractor.
type Rule struct {
	Type              Type
	SelectorText      string
	Tags              []string
	UseSymbolIdentity bool
	Extractor         Extractor

	mu  sync.Mutex
	sel *selector.ComplexSelectorList
}

// Selector parses (and memoizes) the rule's selector text.
func (r *Rule) Selector() (*selector.ComplexSelectorList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sel != nil {
		return r.sel, nil
	}
	sel, err := selector.Parse(r.SelectorText)
	if err != nil {
		return nil, err
	}
	r.sel = sel
	return sel, nil
}

// DefaultCatalog returns the fixed rule table encoding flowlens's
// layered-architecture vocabulary: controllers, actions,
// services, repositories, DTOs, entities, DB contexts, validators, CQRS
// handlers/pipelines/requests/notifications, publishers, background
// services, options, caches, HTTP clients, HTTP calls, guards, mappers,
// and authorization.
func DefaultCatalog() []*Rule {
	return []*Rule{
		{
			Type:              TypeController,
			SelectorText:      `:struct[Symbol.Name$="Controller"]`,
			Tags:              []string{"controller"},
			UseSymbolIdentity: true,
			Extractor:         extractController,
		},
		{
			// Go methods are top-level declarations, not nested inside
			// their receiver's type_declaration the way a C# method is
			// nested inside its class, so this targets the owning type
			// through Symbol.ContainingType rather than a descendant
			// combinator over the syntax tree.
			Type:              TypeControllerAction,
			SelectorText:      `:method[Symbol.ContainingType.Name$="Controller"]`,
			Tags:              []string{"controller-action"},
			UseSymbolIdentity: true,
			Extractor:         extractControllerAction,
		},
		{
			Type:              TypeService,
			SelectorText:      `:struct[Symbol.Name$="Service"]:not([Symbol.Name$="BackgroundService"])`,
			Tags:              []string{"service"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypeRepository,
			SelectorText:      `:struct[Symbol.Name$="Repository"]`,
			Tags:              []string{"repository"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypeDTO,
			SelectorText:      `:struct:is([Symbol.Name$="Dto"], [Symbol.Name$="DTO"], [Symbol.Name$="Request"], [Symbol.Name$="Response"])`,
			Tags:              []string{"dto"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypeEntity,
			SelectorText:      `:struct[Symbol.Name$="Entity"]`,
			Tags:              []string{"entity"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypeDbContext,
			SelectorText:      `:struct[Symbol.Name$="DbContext"]`,
			Tags:              []string{"db-context"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypeValidator,
			SelectorText:      `:struct[Symbol.Name$="Validator"]`,
			Tags:              []string{"validator"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypeCqrsHandler,
			SelectorText:      `:struct:implements([Name="IRequestHandler"])`,
			Tags:              []string{"cqrs-handler"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypeCqrsPipeline,
			SelectorText:      `:struct:implements([Name="IPipelineBehavior"])`,
			Tags:              []string{"cqrs-pipeline"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypeCqrsRequest,
			SelectorText:      `:struct:implements([Name="IRequest"])`,
			Tags:              []string{"cqrs-request"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypeCqrsNotification,
			SelectorText:      `:struct:implements([Name="INotification"])`,
			Tags:              []string{"cqrs-notification"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypePublisher,
			SelectorText:      `:struct[Symbol.Name$="Publisher"]`,
			Tags:              []string{"publisher"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypeBackgroundService,
			SelectorText:      `:struct[Symbol.Name$="BackgroundService"]`,
			Tags:              []string{"background-service"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypeOptions,
			SelectorText:      `:struct[Symbol.Name$="Options"]`,
			Tags:              []string{"options"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypeCache,
			SelectorText:      `:struct:is([Symbol.Name$="Cache"], [Symbol.Name*="Cache"])`,
			Tags:              []string{"cache"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypeHttpClient,
			SelectorText:      `:struct[Symbol.Name$="Client"]`,
			Tags:              []string{"http-client"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypeHttpCall,
			SelectorText:      `call_expression[Symbol.ContainingType.Name*="HttpClient"]`,
			Tags:              []string{"http-call"},
			UseSymbolIdentity: false,
			Extractor:         extractHTTPCall,
		},
		{
			Type:              TypeGuard,
			SelectorText:      `:struct[Symbol.Name$="Guard"]`,
			Tags:              []string{"guard"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypeMapper,
			SelectorText:      `:struct[Symbol.Name$="Mapper"]`,
			Tags:              []string{"mapper"},
			UseSymbolIdentity: true,
		},
		{
			Type:              TypeAuthorization,
			SelectorText:      `:method[Symbol.Name^="Authorize"]`,
			Tags:              []string{"authorization"},
			UseSymbolIdentity: true,
		},
	}
}

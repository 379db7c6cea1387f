package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/fastygo/storefront-guard/domain"
)

// Backend operations routed through the dispatcher.
const (
	CommandAuthRefresh   = "auth.refresh"
	CommandAuthLogout    = "auth.logout"
	QueryAuthSession     = "auth.session"
	QueryAuthPermissions = "auth.permissions"
)

// PermissionQuery is the parameter of QueryAuthPermissions.
type PermissionQuery struct {
	User        *domain.User
	Roles       []string
	Permissions []string
}

type CommandHandler func(ctx context.Context, payload interface{}) (interface{}, error)
type QueryHandler func(ctx context.Context, params interface{}) (interface{}, error)

type Dispatcher struct {
	cmdHandlers map[string]CommandHandler
	qryHandlers map[string]QueryHandler
	mu          sync.RWMutex
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		cmdHandlers: make(map[string]CommandHandler),
		qryHandlers: make(map[string]QueryHandler),
	}
}

func (d *Dispatcher) RegisterCommand(name string, handler CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmdHandlers[name] = handler
}

func (d *Dispatcher) RegisterQuery(name string, handler QueryHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.qryHandlers[name] = handler
}

// HasCommand reports whether a command handler is registered under name.
func (d *Dispatcher) HasCommand(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.cmdHandlers[name]
	return ok
}

// HasQuery reports whether a query handler is registered under name.
func (d *Dispatcher) HasQuery(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.qryHandlers[name]
	return ok
}

func (d *Dispatcher) ExecuteCommand(ctx context.Context, name string, payload interface{}) (interface{}, error) {
	d.mu.RLock()
	handler, ok := d.cmdHandlers[name]
	d.mu.RUnlock()
	if !ok {
		return nil, domain.NewError(domain.ErrCodeNotFound, fmt.Sprintf("command handler %s not registered", name))
	}
	return handler(ctx, payload)
}

func (d *Dispatcher) ExecuteQuery(ctx context.Context, name string, params interface{}) (interface{}, error) {
	d.mu.RLock()
	handler, ok := d.qryHandlers[name]
	d.mu.RUnlock()
	if !ok {
		return nil, domain.NewError(domain.ErrCodeNotFound, fmt.Sprintf("query handler %s not registered", name))
	}
	return handler(ctx, params)
}

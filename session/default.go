package session

import (
	"sync"

	emucore "github.com/user-none/egba/api"
)

var (
	defaultMu     sync.Mutex
	defaultEngine *Engine
)

// Init creates the process-wide engine. If one is already running it is
// returned unchanged and factory and opts are ignored.
func Init(factory emucore.CoreFactory, opts ...Option) *Engine {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEngine == nil {
		defaultEngine = NewEngine(factory, opts...)
	}
	return defaultEngine
}

// Default returns the process-wide engine, or nil before Init and after
// Shutdown.
func Default() *Engine {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultEngine
}

// Shutdown closes all sessions of the process-wide engine and discards it.
func Shutdown() {
	defaultMu.Lock()
	e := defaultEngine
	defaultEngine = nil
	defaultMu.Unlock()
	if e != nil {
		e.Shutdown()
	}
}

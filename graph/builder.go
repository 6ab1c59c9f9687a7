// Package graph exports the knowledge graph as a node-link structure for
// visualization.
package graph

import (
	"time"

	"go.uber.org/zap"

	"github.com/teranos/finkg/kg"
	"github.com/teranos/finkg/logger"
)

// Builder builds graph structures from a store. It never mutates the store.
type Builder struct {
	store  *kg.Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewBuilder creates a new graph builder over store
func NewBuilder(store *kg.Store, log *zap.SugaredLogger) *Builder {
	return &Builder{
		store:  store,
		logger: logger.OrNop(log).Named("graph.builder"),
		now:    time.Now,
	}
}

package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/project-registry/internal/extract"
	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/store"
)

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *mockExtractor) Extract(ctx context.Context, text, sourceURL string) (extract.Result, error) {
	args := m.Called(ctx, text, sourceURL)
	return args.Get(0).(extract.Result), args.Error(1)
}

// --- Publisher Mock ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, ev model.ProjectEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// --- Source Mock ---

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *mockSource) Fetch(ctx context.Context) ([]model.RawItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RawItem), args.Error(1)
}

// --- Extractor stubs ---

// panicExtractor delegates to next unless the text equals trigger.
type panicExtractor struct {
	next    extract.Extractor
	trigger string
}

func (p *panicExtractor) Name() string { return "panic" }

func (p *panicExtractor) Extract(ctx context.Context, text, sourceURL string) (extract.Result, error) {
	if text == p.trigger {
		panic("extractor exploded")
	}
	return p.next.Extract(ctx, text, sourceURL)
}

// failingTxStore fails every transaction with err.
type failingTxStore struct {
	store.Store
	err error
}

func (f *failingTxStore) InTx(_ context.Context, _ func(store.Tx) error) error {
	return f.err
}

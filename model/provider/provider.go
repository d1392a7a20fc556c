//
// Tencent is pleased to support the open source community by making trpc-simeval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-simeval-go is licensed under the Apache License Version 2.0.
//
//

// Package provider resolves named model tiers from a fixed allow-list to
// model.Model instances.
package provider

import (
	"fmt"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-simeval-go/model"
	"trpc.group/trpc-go/trpc-simeval-go/model/openai"
)

// Default model tiers on the allow-list. Tier names double as the backend
// model names for the OpenAI-compatible API.
const (
	TierLarge    = "gpt-5"
	TierMedium   = "gpt-5-mini"
	TierStandard = "gpt-4.1"
	TierLite     = "gpt-4.1-mini"
	DefaultTier  = TierLite
)

// Factory builds a model.Model instance for a tier.
type Factory func(opts *Options) (model.Model, error)

// Options carries shared construction options for tier factories.
type Options struct {
	// APIKey overrides the environment-provided API key.
	APIKey string
	// BaseURL overrides the default API endpoint.
	BaseURL string
}

// Option configures Options.
type Option func(*Options)

// WithAPIKey sets the API key used when constructing backends.
func WithAPIKey(apiKey string) Option {
	return func(o *Options) {
		o.APIKey = apiKey
	}
}

// WithBaseURL sets the base URL used when constructing backends.
func WithBaseURL(baseURL string) Option {
	return func(o *Options) {
		o.BaseURL = baseURL
	}
}

var (
	tiersMu sync.RWMutex               // tiersMu guards tiers access.
	tiers   = make(map[string]Factory) // tiers stores tier name to factory mappings.
)

func init() {
	for _, tier := range []string{TierLarge, TierMedium, TierStandard, TierLite} {
		Register(tier, openaiFactory(tier))
	}
}

// Register registers a tier by name. Registering an existing name replaces
// its factory, which lets tests and embedders swap in fakes.
func Register(name string, factory Factory) {
	tiersMu.Lock()
	defer tiersMu.Unlock()
	tiers[name] = factory
}

// Allowed reports whether the tier name is on the allow-list.
func Allowed(name string) bool {
	tiersMu.RLock()
	defer tiersMu.RUnlock()
	_, ok := tiers[name]
	return ok
}

// Tiers returns the sorted allow-list of tier names.
func Tiers() []string {
	tiersMu.RLock()
	defer tiersMu.RUnlock()
	names := make([]string, 0, len(tiers))
	for name := range tiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Model constructs a model.Model for the given tier name.
func Model(name string, opt ...Option) (model.Model, error) {
	opts := &Options{}
	for _, o := range opt {
		o(opts)
	}
	tiersMu.RLock()
	factory, ok := tiers[name]
	tiersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("model tier %q is not on the allow-list", name)
	}
	return factory(opts)
}

// openaiFactory builds an OpenAI-compatible backend for the tier.
func openaiFactory(modelName string) Factory {
	return func(opts *Options) (model.Model, error) {
		var modelOpts []openai.Option
		if opts.APIKey != "" {
			modelOpts = append(modelOpts, openai.WithAPIKey(opts.APIKey))
		}
		if opts.BaseURL != "" {
			modelOpts = append(modelOpts, openai.WithBaseURL(opts.BaseURL))
		}
		return openai.New(modelName, modelOpts...), nil
	}
}

// Package registry resolves schema definitions by name from the EventBridge
// Schema Registry and caches them for the life of the process.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsschemas "github.com/aws/aws-sdk-go-v2/service/schemas"
	"github.com/aws/smithy-go"

	"github.com/flowgate/wrurelay/internal/faults"
	"github.com/flowgate/wrurelay/internal/schema"
)

// API is the slice of the schema registry client the resolver needs.
// *schemas.Client satisfies it.
type API interface {
	DescribeSchema(ctx context.Context, params *awsschemas.DescribeSchemaInput, optFns ...func(*awsschemas.Options)) (*awsschemas.DescribeSchemaOutput, error)
	ListSchemas(ctx context.Context, params *awsschemas.ListSchemasInput, optFns ...func(*awsschemas.Options)) (*awsschemas.ListSchemasOutput, error)
}

// CacheMetrics receives cache hit/miss signals. Implemented by the metrics
// package; a nil-safe no-op is used when metrics are disabled.
type CacheMetrics interface {
	SchemaCacheHit()
	SchemaCacheMiss()
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithInlineSchema supplies a full schema document tried when the registry
// cannot serve one.
func WithInlineSchema(content string) Option {
	return func(r *Resolver) { r.inline = content }
}

// WithSchemaFile points at a schema document on disk, tried after the inline
// fallback.
func WithSchemaFile(path string) Option {
	return func(r *Resolver) { r.file = path }
}

// WithBuiltinFallback makes the built-in WorkflowRunUpdate definition the
// fallback of last resort. Off by default: a missing schema is normally a
// misconfiguration that should fail loudly, not be papered over.
func WithBuiltinFallback() Option {
	return func(r *Resolver) { r.builtin = true }
}

// WithCacheMetrics wires cache hit/miss counters.
func WithCacheMetrics(m CacheMetrics) Option {
	return func(r *Resolver) {
		if m != nil {
			r.metrics = m
		}
	}
}

// Resolver fetches schema definitions by identifier. The cache is read-mostly:
// concurrent lookups share RLock, a refresh takes the write lock only to swap
// the entry. A definition handed out before a refresh stays valid for the
// in-flight validation that holds it.
type Resolver struct {
	client  API
	log     *slog.Logger
	metrics CacheMetrics

	inline  string
	file    string
	builtin bool

	mu    sync.RWMutex
	cache map[schema.Identifier]*schema.Definition
}

// New builds a Resolver around the given registry client.
func New(client API, log *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		client:  client,
		log:     log,
		metrics: noopMetrics{},
		cache:   make(map[schema.Identifier]*schema.Definition),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the definition for id, from cache when possible. Errors are
// classified: faults.ErrSchemaNotFound when the registry has no such schema
// (and no fallback applies), faults.ErrRegistryUnavailable when the lookup
// could not complete.
func (r *Resolver) Resolve(ctx context.Context, id schema.Identifier) (*schema.Definition, error) {
	r.mu.RLock()
	def, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		r.metrics.SchemaCacheHit()
		return def, nil
	}
	r.metrics.SchemaCacheMiss()

	def, err := r.fetch(ctx, id)
	if err != nil {
		if fallback := r.fallback(id); fallback != nil {
			r.log.Warn("registry lookup failed, using fallback schema",
				"schema", id.String(), "error", err)
			def = fallback
		} else {
			return nil, err
		}
	}

	r.mu.Lock()
	r.cache[id] = def
	r.mu.Unlock()
	return def, nil
}

// Invalidate drops the cached definition for id. Called when a resolver error
// indicates the schema changed or was deleted.
func (r *Resolver) Invalidate(id schema.Identifier) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}

func (r *Resolver) fetch(ctx context.Context, id schema.Identifier) (*schema.Definition, error) {
	out, err := r.client.DescribeSchema(ctx, &awsschemas.DescribeSchemaInput{
		RegistryName: aws.String(id.RegistryName),
		SchemaName:   aws.String(id.SchemaName),
	})
	if err != nil {
		return nil, classify(id, err)
	}
	if out.Content == nil || *out.Content == "" {
		return nil, fmt.Errorf("%w: %s has no content", faults.ErrSchemaNotFound, id)
	}

	def, err := schema.Parse(id.SchemaName, aws.ToString(out.Type), []byte(*out.Content))
	if err != nil {
		// An unusable contract is a misconfiguration, not a transient fault.
		return nil, fmt.Errorf("%w: %v", faults.ErrSchemaNotFound, err)
	}
	return def, nil
}

func (r *Resolver) fallback(id schema.Identifier) *schema.Definition {
	if r.inline != "" {
		def, err := schema.Parse(id.SchemaName, schema.ContentJSONSchemaDraft7, []byte(r.inline))
		if err == nil {
			return def
		}
		r.log.Error("inline fallback schema is invalid", "error", err)
	}
	if r.file != "" {
		content, err := os.ReadFile(r.file)
		if err == nil {
			def, perr := schema.Parse(id.SchemaName, schema.ContentJSONSchemaDraft7, content)
			if perr == nil {
				return def
			}
			err = perr
		}
		r.log.Error("schema file fallback is unusable", "path", r.file, "error", err)
	}
	if r.builtin {
		return schema.DefaultDefinition()
	}
	return nil
}

// ListSchemaNames lists the schema names in a registry. Diagnostics only,
// never on the validation hot path.
func (r *Resolver) ListSchemaNames(ctx context.Context, registryName string) ([]string, error) {
	var names []string
	var nextToken *string
	for {
		out, err := r.client.ListSchemas(ctx, &awsschemas.ListSchemasInput{
			RegistryName: aws.String(registryName),
			NextToken:    nextToken,
		})
		if err != nil {
			return nil, classify(schema.Identifier{RegistryName: registryName}, err)
		}
		for _, s := range out.Schemas {
			names = append(names, aws.ToString(s.SchemaName))
		}
		if out.NextToken == nil {
			return names, nil
		}
		nextToken = out.NextToken
	}
}

// classify separates "schema legitimately does not exist" from "registry not
// reachable"; the two drive different record outcomes.
func classify(id schema.Identifier, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFoundException":
			return fmt.Errorf("%w: %s: %v", faults.ErrSchemaNotFound, id, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", faults.ErrRegistryUnavailable, id, err)
}

type noopMetrics struct{}

func (noopMetrics) SchemaCacheHit()  {}
func (noopMetrics) SchemaCacheMiss() {}

// Package export publishes a staged audio artifact to the contact-center
// prompt library.
package export

import (
	"context"
	"log/slog"

	"github.com/promptstudio/promptstudio/internal/auth"
	"github.com/promptstudio/promptstudio/internal/failure"
	"github.com/promptstudio/promptstudio/internal/promptname"
	"github.com/promptstudio/promptstudio/internal/session"
)

// DefaultLanguage is used when a request carries no language tag.
const DefaultLanguage = "en-us"

// Request is one export call. It is not persisted.
type Request struct {
	StagedArtifactRef string
	RawName           string
	Description       string
	LanguageTag       string
}

// Publisher uploads prompt audio to the remote library.
type Publisher interface {
	PublishPrompt(ctx context.Context, audio []byte, name, description, language string) error
}

// Artifacts resolves staged artifact refs to bytes.
type Artifacts interface {
	Load(ref string) ([]byte, error)
}

// Authorizer is the access gate consulted before any export work.
type Authorizer interface {
	Authorize(rec *session.Record) auth.Decision
}

// Pipeline runs the export steps strictly in order: gate, name, artifact,
// publish. It never retries.
type Pipeline struct {
	gate      Authorizer
	artifacts Artifacts
	publisher Publisher
}

// NewPipeline creates an export pipeline.
func NewPipeline(gate Authorizer, artifacts Artifacts, publisher Publisher) *Pipeline {
	return &Pipeline{gate: gate, artifacts: artifacts, publisher: publisher}
}

// Export publishes the artifact named by req for the session rec and returns
// the sanitized prompt name on success.
func (p *Pipeline) Export(ctx context.Context, req Request, rec *session.Record) (string, error) {
	if !p.gate.Authorize(rec).Allowed {
		return "", failure.New(failure.Unauthenticated, "Not authenticated")
	}

	if req.StagedArtifactRef == "" || promptname.IsBlank(req.RawName) {
		return "", failure.New(failure.MissingName, "Missing filename or prompt name")
	}
	name := promptname.Sanitize(req.RawName)

	audio, err := p.artifacts.Load(req.StagedArtifactRef)
	if err != nil {
		return "", failure.Wrap(err, failure.InternalError, "Could not read staged file")
	}

	lang := req.LanguageTag
	if lang == "" {
		lang = DefaultLanguage
	}

	if err := p.publisher.PublishPrompt(ctx, audio, name, req.Description, lang); err != nil {
		slog.Error("export: failed to publish prompt", "prompt", name, "language", lang, "error", err)
		return "", &failure.Error{Reason: failure.PublishFailed, Detail: err.Error(), Err: err}
	}

	slog.Info("prompt exported", "prompt", name, "language", lang, "bytes", len(audio))
	return name, nil
}

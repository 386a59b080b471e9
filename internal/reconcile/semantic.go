package reconcile

import (
	"context"
	"path"
	"strings"

	"trustgraph/internal/canon"
	"trustgraph/internal/knowledge"
	"trustgraph/internal/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// semanticConfirmed is the floor applied to an edge the completion service
// confirms; an unconfirmed or failed check halves the edge's confidence.
const semanticConfirmed = 0.70

// BodySource supplies caller source text for semantic checks.
type BodySource interface {
	Body(ctx context.Context, function, file string) (body, language string, ok bool)
}

// IndexBodies reads caller bodies from the Function Index. A foreign file
// path falls back to a bare-name lookup matched on the file's base name.
type IndexBodies struct {
	index storage.IndexReader
}

func NewIndexBodies(index storage.IndexReader) *IndexBodies {
	return &IndexBodies{index: index}
}

func (b *IndexBodies) Body(ctx context.Context, function, file string) (string, string, bool) {
	name := canon.Bare(function)
	if file != "" {
		if e, err := b.index.LookupByQualified(ctx, name, file); err == nil && e != nil {
			return e.Content, e.Language, true
		}
	}
	entries, err := b.index.LookupByBareName(ctx, name)
	if err != nil || len(entries) == 0 {
		return "", "", false
	}
	want := canon.File(file)
	for _, e := range entries {
		if want != "" && strings.EqualFold(path.Base(e.Filepath), want) {
			return e.Content, e.Language, true
		}
	}
	return entries[0].Content, entries[0].Language, true
}

// annotate checks PHANTOM and MISSING edges in parallel. Each worker owns
// one verdict slot; a failed call marks only its edge unconfirmed.
func (e *Engine) annotate(ctx context.Context, verdicts []EdgeVerdict) {
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range verdicts {
		v := &verdicts[i]
		if v.Verdict == Confirmed {
			continue
		}
		g.Go(func() error {
			e.checkEdge(ctx, v)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) checkEdge(ctx context.Context, v *EdgeVerdict) {
	body, language, ok := e.bodies.Body(ctx, v.Caller, v.CallerFile)
	if !ok {
		return
	}
	resp, err := e.semantic.Verify(ctx, knowledge.VerifyRequest{
		CallerName:      v.Caller,
		CallerBody:      body,
		CandidateCallee: canon.Bare(v.Callee),
		Language:        language,
	})
	if err != nil {
		e.logger.Debug("semantic check failed",
			zap.String("edge", v.Key.String()),
			zap.Error(err),
		)
		v.Semantic = knowledge.VerdictUnconfirmed
		v.Rationale = "verification failed: " + err.Error()
		v.Confidence /= 2
		return
	}
	v.Semantic = resp.Verdict
	v.Rationale = resp.Rationale
	if resp.Confirmed() {
		v.Confidence = max(v.Confidence, semanticConfirmed)
	} else {
		v.Confidence /= 2
	}
}

// Package pipeline runs the configured steps in order. Each step is one
// chunked pass (etl.Processor) whose transform is bound to the reference
// tables its kind needs; references are read once per run and shared.
package pipeline

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"courtetl/internal/codec"
	"courtetl/internal/config"
	"courtetl/internal/datasource"
	"courtetl/internal/datasource/file"
	"courtetl/internal/datasource/httpds"
	"courtetl/internal/etl"
	"courtetl/internal/frame"
	"courtetl/internal/logger"
	"courtetl/internal/metrics"
	"courtetl/internal/objstore"
	csvparser "courtetl/internal/parser/csv"
	"courtetl/internal/sink"
	"courtetl/internal/transformer"
)

// Reference names.
const (
	RefPeople       = "people"
	RefAffiliations = "political_affiliations"
	RefDockets      = "dockets"
	RefClusters     = "clusters"
	// RefAuthors is derived from people and political_affiliations.
	RefAuthors = "authors"
)

// Result is the outcome of one step.
type Result struct {
	Step    string
	Summary etl.Summary
}

// Runner executes a pipeline.
type Runner struct {
	cfg    config.Pipeline
	log    logger.Logger
	parser csvparser.Options

	resolver datasource.Resolver
	putter   sink.Putter

	mu   sync.Mutex
	refs map[string]*frame.Frame
}

// Option customises a Runner.
type Option func(*Runner)

// WithResolver replaces the source resolver.
func WithResolver(r datasource.Resolver) Option { return func(rn *Runner) { rn.resolver = r } }

// WithPutter sets the uploader used for s3:// outputs.
func WithPutter(p sink.Putter) Option { return func(rn *Runner) { rn.putter = p } }

// New builds a Runner. An S3 client is created only when some URI in cfg
// uses s3://.
func New(ctx context.Context, cfg config.Pipeline, log logger.Logger, opts ...Option) (*Runner, error) {
	if log == nil {
		log = logger.NopLogger
	}
	r := &Runner{
		cfg:    cfg,
		log:    log,
		parser: csvparser.OptionsFrom(cfg.Parser.Options),
		refs:   map[string]*frame.Frame{},
	}
	r.resolver.HTTP = httpds.NewClient(httpds.Config{Timeout: time.Hour, MaxRetries: 3}, log.WithPrefix("http: "))
	if config.UsesS3(cfg) {
		store, err := objstore.New(ctx, cfg.S3)
		if err != nil {
			return nil, errors.Wrap(err, "s3 client")
		}
		r.resolver.S3 = store
		r.putter = store
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Run executes the named steps, or every step when names is empty, in
// configuration order. It stops at the first failure.
func (r *Runner) Run(ctx context.Context, names ...string) ([]Result, error) {
	steps, err := r.selectSteps(names)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(steps))
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		sum, err := r.RunStep(ctx, s)
		if err != nil {
			return results, errors.Wrapf(err, "step %s", s.Name)
		}
		results = append(results, Result{Step: s.Name, Summary: sum})
	}
	return results, nil
}

func (r *Runner) selectSteps(names []string) ([]config.Step, error) {
	if len(names) == 0 {
		return r.cfg.Steps, nil
	}
	byName := make(map[string]config.Step, len(r.cfg.Steps))
	for _, s := range r.cfg.Steps {
		byName[s.Name] = s
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := byName[n]; !ok {
			return nil, errors.Errorf("unknown step %q", n)
		}
		want[n] = true
	}
	var out []config.Step
	for _, s := range r.cfg.Steps {
		if want[s.Name] {
			out = append(out, s)
		}
	}
	return out, nil
}

// RunStep runs a single step.
func (r *Runner) RunStep(ctx context.Context, s config.Step) (etl.Summary, error) {
	log := r.log.WithPrefix("[" + s.Name + "] ")
	fn, err := r.Transform(ctx, s, log)
	if err != nil {
		return etl.Summary{}, err
	}
	src, err := r.resolver.Resolve(s.Source)
	if err != nil {
		return etl.Summary{}, err
	}
	out, err := sink.Resolve(s.Output, r.putter)
	if err != nil {
		return etl.Summary{}, err
	}
	kind, err := codec.Parse(s.Compression)
	if err != nil {
		return etl.Summary{}, err
	}

	p := &etl.Processor{
		Source:      src,
		SourceURI:   s.Source,
		Sink:        out,
		ChunkSize:   s.EffectiveChunkSize(),
		Parser:      r.parser,
		Compression: kind,
		Log:         log,
		Job:         r.cfg.Job,
		Step:        s.Name,
		Storage:     s.Storage,
	}
	log.Infof("reading %s in chunks of %d", s.Source, p.ChunkSize)
	sum, err := p.RunParse(ctx, fn)
	if err != nil {
		return sum, err
	}
	// A later step may read this output as a reference.
	r.forget(s.Output)
	log.Infof("done: %d chunks, %d rows read, %d written, %d bytes, xxh3 %016x, %s",
		sum.Chunks, sum.RowsRead, sum.RowsWritten, sum.Bytes, sum.Digest, sum.Duration.Round(time.Millisecond))
	return sum, nil
}

// Transform binds the step's kind to its options and reference tables.
func (r *Runner) Transform(ctx context.Context, s config.Step, log logger.Logger) (transformer.Func, error) {
	switch s.Kind {
	case config.KindDocketFilter:
		courts, err := courtsOption(s.Options)
		if err != nil {
			return nil, err
		}
		return transformer.DocketFilter(courts), nil

	case config.KindClusterFilter:
		refs, err := r.references(ctx, RefDockets)
		if err != nil {
			return nil, err
		}
		return transformer.ClusterFilter(log, refs[RefDockets]), nil

	case config.KindOpinionFilter:
		authors, err := r.authors(ctx)
		if err != nil {
			return nil, err
		}
		return transformer.OpinionFilter(log, authors), nil

	case config.KindOpinionJoin:
		refs, err := r.references(ctx, RefClusters)
		if err != nil {
			return nil, err
		}
		authors, err := r.authors(ctx)
		if err != nil {
			return nil, err
		}
		keep := s.Options.StringSlice("keep_columns")
		return transformer.OpinionJoiner(log, refs[RefClusters], authors, keep), nil
	}
	return nil, errors.Errorf("unknown step kind %q", s.Kind)
}

// courtsOption reads the allow-list from options.courts or, failing that,
// from the file named by options.courts_file. Neither yields nil, which the
// docket filter treats as its default list.
func courtsOption(o config.Options) ([]string, error) {
	if courts := o.StringSlice("courts"); len(courts) > 0 {
		return courts, nil
	}
	if path := o.String("courts_file", ""); path != "" {
		courts, err := file.ReadList(path)
		if err != nil {
			return nil, errors.Wrap(err, "courts_file")
		}
		return courts, nil
	}
	return nil, nil
}

func (r *Runner) uri(name string) string {
	switch name {
	case RefPeople:
		return r.cfg.References.People
	case RefAffiliations:
		return r.cfg.References.PoliticalAffiliations
	case RefDockets:
		return r.cfg.References.Dockets
	case RefClusters:
		return r.cfg.References.Clusters
	}
	return ""
}

// references returns the named tables, loading the missing ones
// concurrently.
func (r *Runner) references(ctx context.Context, names ...string) (map[string]*frame.Frame, error) {
	out := make(map[string]*frame.Frame, len(names))
	var missing []string
	r.mu.Lock()
	for _, n := range names {
		if f, ok := r.refs[n]; ok {
			out[n] = f
		} else {
			missing = append(missing, n)
		}
	}
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	var outMu sync.Mutex
	for _, name := range missing {
		name := name
		g.Go(func() error {
			f, err := r.load(gctx, name)
			if err != nil {
				return err
			}
			outMu.Lock()
			out[name] = f
			outMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	for _, n := range missing {
		r.refs[n] = out[n]
	}
	r.mu.Unlock()
	return out, nil
}

func (r *Runner) load(ctx context.Context, name string) (*frame.Frame, error) {
	uri := r.uri(name)
	if strings.TrimSpace(uri) == "" {
		return nil, errors.Errorf("references.%s is not configured", name)
	}
	src, err := r.resolver.Resolve(uri)
	if err != nil {
		return nil, err
	}
	raw, err := src.Open(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "open reference %s", name)
	}
	rc, err := codec.NewReader(codec.FromName(uri), raw)
	if err != nil {
		return nil, errors.Wrapf(err, "reference %s", name)
	}
	defer rc.Close()

	start := time.Now()
	f, err := csvparser.ReadAll(ctx, rc, r.parser)
	if err != nil {
		return nil, errors.Wrapf(err, "read reference %s (%s)", name, uri)
	}
	metrics.RecordReference(r.cfg.Job, name, f.Len())
	r.log.Infof("loaded reference %s: %d rows from %s in %s", name, f.Len(), uri, time.Since(start).Round(time.Millisecond))
	return f, nil
}

// authors joins people with their political affiliations, once per run.
func (r *Runner) authors(ctx context.Context) (*frame.Frame, error) {
	r.mu.Lock()
	f, ok := r.refs[RefAuthors]
	r.mu.Unlock()
	if ok {
		return f, nil
	}
	refs, err := r.references(ctx, RefPeople, RefAffiliations)
	if err != nil {
		return nil, err
	}
	f, err = transformer.BuildAuthors(refs[RefPeople], refs[RefAffiliations])
	if err != nil {
		return nil, errors.Wrap(err, "build authors")
	}
	r.mu.Lock()
	r.refs[RefAuthors] = f
	r.mu.Unlock()
	return f, nil
}

// forget drops cached references read from uri.
func (r *Runner) forget(uri string) {
	target := sameFile(uri)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range []string{RefPeople, RefAffiliations, RefDockets, RefClusters} {
		if sameFile(r.uri(name)) == target {
			delete(r.refs, name)
			if name == RefPeople || name == RefAffiliations {
				delete(r.refs, RefAuthors)
			}
		}
	}
}

// sameFile canonicalises a URI for comparison: local paths and file:// URIs
// become cleaned paths, anything else is returned as is.
func sameFile(uri string) string {
	switch datasource.Scheme(uri) {
	case "":
		if uri == "" {
			return ""
		}
		return filepath.Clean(uri)
	case "file":
		if u, err := url.Parse(uri); err == nil {
			return filepath.Clean(u.Path)
		}
	}
	return uri
}

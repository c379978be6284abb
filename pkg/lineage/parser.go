package lineage

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Option configures ParseContent and ParseFile.
type Option func(*parseOptions)

type parseOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger for parse debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *parseOptions) {
		o.logger = logger
	}
}

// ParseFile reads path and extracts its lineage. A missing or unreadable file
// is an error; nothing about the SQL itself ever is.
func ParseFile(path, defaultCatalog string, opts ...Option) (*FileResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseContent(path, DecodeText(b), defaultCatalog, opts...), nil
}

// fileState is the mutable context of one file's parse. It starts fresh for
// every file from the caller's default catalog.
type fileState struct {
	currentCatalog string
	tempKnown      map[QualifiedName]struct{}
	sequence       int
	hits           []CatalogHit
	nextHit        int
}

// ParseContent extracts the lineage of one file's text. file is recorded on
// every fact as provenance. The result depends only on the text and the
// default catalog.
func ParseContent(file, text, defaultCatalog string, opts ...Option) *FileResult {
	o := parseOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	normalized, hits := Normalize(text)
	st := &fileState{
		currentCatalog: strings.ToUpper(strings.TrimSpace(defaultCatalog)),
		tempKnown:      make(map[QualifiedName]struct{}),
		hits:           hits,
	}
	res := newFileResult(file)

	for _, stmt := range SplitStatements(normalized) {
		kind, rawTarget := Classify(stmt)
		switch {
		case kind == KindSetCatalog && rawTarget != "":
			st.setCatalog(res, rawTarget)
		case kind == KindNone || rawTarget == "":
			continue
		default:
			st.record(res, stmt, kind, rawTarget)
		}
	}

	logger.Debug("parsed file",
		slog.String("file", file),
		slog.Int("statements", len(res.Statements)),
		slog.Int("lineage_edges", len(res.Lineage)),
		slog.Int("catalogs", len(res.Catalogs)))

	return res
}

// setCatalog switches the current catalog and ties the directive to the next
// unconsumed normalizer hit.
func (st *fileState) setCatalog(res *FileResult, name string) {
	st.currentCatalog = strings.ToUpper(name)

	obs := CatalogObservation{File: res.File, Catalog: st.currentCatalog}
	if st.nextHit < len(st.hits) {
		hit := st.hits[st.nextHit]
		st.nextHit++
		obs.Line, obs.Catalog = hit.Line, hit.Catalog
	}
	res.Catalogs = append(res.Catalogs, obs)
}

// record handles one creation or insert statement.
func (st *fileState) record(res *FileResult, stmt string, kind StatementKind, rawTarget string) {
	target := Qualify(rawTarget, st.currentCatalog)
	st.sequence++

	res.Nodes[target] = struct{}{}
	if kind.IsTemp() || IsTemporaryName(target.Table()) {
		res.Temporaries[target] = struct{}{}
		st.tempKnown[target] = struct{}{}
	}

	mainFrom, joins := ExtractSources(stmt, CTENames(stmt), st.currentCatalog)

	var sources []QualifiedName
	if mainFrom != "" {
		res.Nodes[mainFrom] = struct{}{}
		res.Lineage = append(res.Lineage, LineageEdge{
			Source: mainFrom,
			Target: target,
			Op:     kind.Op(),
			File:   res.File,
		})
		sources = append(sources, mainFrom)
	}

	for _, j := range joins {
		res.Nodes[j.Table] = struct{}{}
		if mainFrom != "" {
			res.Pairs = append(res.Pairs, JoinPairEdge{
				From:      mainFrom,
				JoinTable: j.Table,
				JoinType:  j.JoinType,
				JoinKey:   j.JoinKey,
				File:      res.File,
			})
		}
		sources = append(sources, j.Table)
	}

	// Only temporaries created earlier in this file count.
	for _, src := range sources {
		if _, ok := st.tempKnown[src]; ok {
			res.Usage = append(res.Usage, UsageEdge{
				Source: src,
				Target: target,
				Op:     OpUsedIn,
				File:   res.File,
			})
		}
	}

	res.Statements = append(res.Statements, StatementRecord{
		SequenceID: st.sequence,
		File:       res.File,
		Target:     target,
		Kind:       kind,
		FromMain:   mainFrom,
		Joins:      nonNil(joins),
	})
}

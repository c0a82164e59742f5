package search

import (
	"strconv"

	"github.com/Sumatoshi-tech/fastsketch/pkg/compare"
	"github.com/Sumatoshi-tech/fastsketch/pkg/gather"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sink"
	"github.com/Sumatoshi-tech/fastsketch/pkg/sketch"
)

// Output tables. The names double as SQLite table names.
const (
	TablePairwise    = "pairwise"
	TableMultisearch = "multisearch"
	TableManysearch  = "manysearch"
	TablePrefetch    = "prefetch"
	TableGather      = "gather"
)

// SearchColumns is the header of pairwise, multisearch and manysearch output.
var SearchColumns = []string{
	"query_name", "query_md5", "match_name", "match_md5",
	"intersect_hashes", "containment", "match_containment", "max_containment", "jaccard",
}

// PrefetchColumns is the header of prefetch output.
var PrefetchColumns = []string{
	"query_filename", "query_name", "query_md5", "match_name", "match_md5", "match_filename",
	"intersect_hashes", "intersect_bp", "containment", "match_containment", "max_containment", "jaccard",
}

// GatherColumns is the header of gather output.
var GatherColumns = []string{
	"query_filename", "rank", "query_name", "query_md5", "match_name", "match_md5", "match_filename",
	"intersect_hashes", "unique_intersect_hashes", "intersect_bp", "unique_intersect_bp",
	"f_orig_query", "f_match", "f_unique_to_query", "max_containment", "jaccard", "remaining_bp",
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatUint(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// optional renders a statistic, or an empty cell when it was not computed.
func optional(m compare.Match, stat compare.Stats, value float64) string {
	if !m.Stats.Has(stat) {
		return ""
	}

	return formatFloat(value)
}

func searchRow(m compare.Match) sink.Row {
	return sink.Row{
		m.Query.DisplayName(),
		m.Query.MD5,
		m.Subject.DisplayName(),
		m.Subject.MD5,
		formatUint(m.IntersectHashes),
		formatFloat(m.ContainmentQuery),
		formatFloat(m.ContainmentSubject),
		optional(m, compare.StatMaxContainment, m.MaxContainment),
		optional(m, compare.StatJaccard, m.Jaccard),
	}
}

func prefetchRow(queryLocation string, c gather.Candidate) sink.Row {
	m := c.Match

	return sink.Row{
		queryLocation,
		m.Query.DisplayName(),
		m.Query.MD5,
		c.Sketch.DisplayName(),
		c.Sketch.MD5,
		c.Location,
		formatUint(m.IntersectHashes),
		formatUint(m.IntersectBP()),
		formatFloat(m.ContainmentQuery),
		formatFloat(m.ContainmentSubject),
		optional(m, compare.StatMaxContainment, m.MaxContainment),
		optional(m, compare.StatJaccard, m.Jaccard),
	}
}

func gatherRow(queryLocation string, query *sketch.Sketch, s gather.Step) sink.Row {
	orig := s.Candidate.Match
	scale := max(orig.Scaled, 1)

	return sink.Row{
		queryLocation,
		strconv.Itoa(s.Rank),
		query.DisplayName(),
		query.MD5,
		s.Candidate.Sketch.DisplayName(),
		s.Candidate.Sketch.MD5,
		s.Candidate.Location,
		formatUint(s.IntersectOrig),
		formatUint(s.Unique.IntersectHashes),
		formatUint(s.IntersectOrig * scale),
		formatUint(s.Unique.IntersectHashes * scale),
		formatFloat(s.FOrigQuery),
		formatFloat(s.FMatch),
		formatFloat(s.FUniqueToQuery),
		optional(orig, compare.StatMaxContainment, orig.MaxContainment),
		optional(orig, compare.StatJaccard, orig.Jaccard),
		formatUint(uint64(s.RemainingHashes) * max(query.Scaled(), 1)),
	}
}

package transformer

import (
	"github.com/pkg/errors"

	"courtetl/internal/frame"
	"courtetl/internal/logger"
)

// DefaultKeepColumns is the projection of the final opinion join. On the
// published files slug_x is the author's slug and slug_y the cluster's.
var DefaultKeepColumns = []string{
	"plain_text", "date_filed", "case_name", "slug_x", "court_id", "slug_y", "political_party",
}

// OpinionFilter keeps opinions that have text and an author, and attaches
// the author's attributes (author_id = id).
func OpinionFilter(log logger.Logger, authors *frame.Frame) Func {
	return func(chunk *frame.Frame) (*frame.Frame, error) {
		good, err := chunk.DropNull("plain_text", "author_id")
		if err != nil {
			return nil, errors.Wrap(err, "opinion filter")
		}
		out, err := frame.Merge(good, authors, frame.MergeOptions{LeftOn: "author_id", RightOn: "id"})
		if err != nil {
			return nil, errors.Wrap(err, "opinion filter")
		}
		log.Infof("Acquired %d rows of good data", out.Len())
		return out, nil
	}
}

// OpinionJoiner joins cleaned opinions onto cleaned clusters
// (cluster_id = id_x, the cluster's own id after the cluster filter's merge),
// then onto authors (author_id = id), and projects keep
// (DefaultKeepColumns when empty).
func OpinionJoiner(log logger.Logger, clusters, authors *frame.Frame, keep []string) Func {
	if len(keep) == 0 {
		keep = DefaultKeepColumns
	}
	keep = append([]string(nil), keep...)
	return func(chunk *frame.Frame) (*frame.Frame, error) {
		withClusters, err := frame.Merge(chunk, clusters, frame.MergeOptions{LeftOn: "cluster_id", RightOn: "id_x"})
		if err != nil {
			return nil, errors.Wrap(err, "opinion join: clusters")
		}
		joined, err := frame.Merge(withClusters, authors, frame.MergeOptions{LeftOn: "author_id", RightOn: "id"})
		if err != nil {
			return nil, errors.Wrap(err, "opinion join: authors")
		}
		log.Infof("Acquired %d rows of good data", joined.Len())
		out, err := joined.Select(keep...)
		return out, errors.Wrap(err, "opinion join")
	}
}

// BuildAuthors derives the author table: people joined with their political
// affiliations on id, projected to id, slug, political_party. A person with
// several affiliations appears once per affiliation.
func BuildAuthors(people, affiliations *frame.Frame) (*frame.Frame, error) {
	joined, err := frame.Merge(people, affiliations, frame.MergeOptions{LeftOn: "id", RightOn: "id"})
	if err != nil {
		return nil, errors.Wrap(err, "build authors")
	}
	out, err := joined.Select("id", "slug", "political_party")
	return out, errors.Wrap(err, "build authors")
}

package transformer

import (
	"github.com/pkg/errors"

	"courtetl/internal/frame"
	"courtetl/internal/logger"
)

// DefaultCourts are the Supreme Court and the federal courts of appeals.
var DefaultCourts = []string{
	"scotus", "ca1", "ca2", "ca3", "ca4", "ca5", "ca6",
	"ca7", "ca8", "ca9", "ca10", "ca11", "cadc",
}

// DocketFilter keeps dockets whose court_id is in courts (DefaultCourts
// when empty). Columns and index are unchanged.
func DocketFilter(courts []string) Func {
	if len(courts) == 0 {
		courts = DefaultCourts
	}
	allowed := append([]string(nil), courts...)
	return func(chunk *frame.Frame) (*frame.Frame, error) {
		out, err := chunk.IsIn("court_id", allowed)
		return out, errors.Wrap(err, "docket filter")
	}
}

// ClusterFilter keeps clusters with judges and attaches their docket's
// court_id by joining docket_id onto the dockets' id. Only id and court_id
// of dockets are used.
func ClusterFilter(log logger.Logger, dockets *frame.Frame) Func {
	ref, refErr := dockets.Select("id", "court_id")
	return func(chunk *frame.Frame) (*frame.Frame, error) {
		if refErr != nil {
			return nil, errors.Wrap(refErr, "cluster filter: dockets")
		}
		judged, err := chunk.DropNull("judges")
		if err != nil {
			return nil, errors.Wrap(err, "cluster filter")
		}
		out, err := frame.Merge(judged, ref, frame.MergeOptions{LeftOn: "docket_id", RightOn: "id"})
		if err != nil {
			return nil, errors.Wrap(err, "cluster filter")
		}
		log.Infof("Acquired %d rows of good data", out.Len())
		return out, nil
	}
}

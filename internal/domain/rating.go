package domain

// EntityGroup is the sentinel key addressing the single group rating of a
// common item.
const EntityGroup = "group"

// Rating holds the collected levels for one criterion. It is a tagged
// variant: either one level shared by the whole group, or one level per
// presenter. The shape is fixed at construction; switching modes goes through
// the explicit ToCommon / ToIndividual conversions.
type Rating struct {
	common      bool
	group       Level
	byPresenter map[string]Level
}

// NewCommonRating returns a group rating initialized to unrated.
func NewCommonRating() *Rating {
	return &Rating{common: true}
}

// NewIndividualRating returns a per-presenter rating with every presenter
// initialized to unrated.
func NewIndividualRating(presenters []Presenter) *Rating {
	levels := make(map[string]Level, len(presenters))
	for _, p := range presenters {
		levels[p.ID] = 0
	}
	return &Rating{byPresenter: levels}
}

// IsCommon reports whether the rating is keyed by the group sentinel.
func (r *Rating) IsCommon() bool {
	return r.common
}

// Level returns the collected level for an entity. Entities the rating is not
// keyed by read as unrated; this covers presenters removed from the roster
// after the session started.
func (r *Rating) Level(entity string) Level {
	if r.common {
		if entity == EntityGroup {
			return r.group
		}
		return 0
	}
	return r.byPresenter[entity]
}

// Set replaces exactly one level. The level must lie in 0..4 and the entity
// must be one the rating is keyed by; both are checked before anything is
// touched, so a rejected write leaves the rating unchanged.
func (r *Rating) Set(entity string, level Level) error {
	if !level.Valid() {
		return ErrInvalidLevel
	}
	if r.common {
		if entity != EntityGroup {
			return ErrUnknownEntity
		}
		r.group = level
		return nil
	}
	if _, ok := r.byPresenter[entity]; !ok {
		return ErrUnknownEntity
	}
	r.byPresenter[entity] = level
	return nil
}

// ToCommon converts to a group rating. Individual levels have no faithful
// group equivalent, so the group starts unrated.
func (r *Rating) ToCommon() *Rating {
	return NewCommonRating()
}

// ToIndividual converts to a per-presenter rating, copying the group level to
// every presenter so a mid-session toggle keeps the collected signal.
func (r *Rating) ToIndividual(presenters []Presenter) *Rating {
	out := NewIndividualRating(presenters)
	if r.common {
		for id := range out.byPresenter {
			out.byPresenter[id] = r.group
		}
	} else {
		for id := range out.byPresenter {
			out.byPresenter[id] = r.byPresenter[id]
		}
	}
	return out
}

// Snapshot returns the rating as a plain map for the audit trail of a
// submitted evaluation: {group: L} for common ratings, presenter-id keys
// otherwise.
func (r *Rating) Snapshot() map[string]Level {
	if r.common {
		return map[string]Level{EntityGroup: r.group}
	}
	out := make(map[string]Level, len(r.byPresenter))
	for id, l := range r.byPresenter {
		out[id] = l
	}
	return out
}

// RatingSheet holds one evaluation session's rating state, keyed by criterion
// ID. A sheet is created fresh when the session starts, mutated during it, and
// discarded once an evaluation record has been derived.
type RatingSheet map[string]*Rating

// NewRatingSheet attaches an unrated Rating to every criterion in the rubric:
// a group rating when the owning item is common, one level per presenter
// otherwise. Rubric fields (weights, titles) are never touched.
func NewRatingSheet(rubric Rubric, presenters []Presenter) RatingSheet {
	sheet := make(RatingSheet)
	for _, it := range rubric.Items() {
		for _, crit := range it.Criteria {
			if it.IsCommon {
				sheet[crit.ID] = NewCommonRating()
			} else {
				sheet[crit.ID] = NewIndividualRating(presenters)
			}
		}
	}
	return sheet
}

// Set replaces one level in the addressed criterion's rating. Every other
// rating keeps its identity, which lets callers detect changes cheaply.
func (s RatingSheet) Set(critID, entity string, level Level) error {
	rating, ok := s[critID]
	if !ok {
		return ErrCriterionNotFound
	}
	return rating.Set(entity, level)
}

// Rating returns the rating attached to a criterion.
func (s RatingSheet) Rating(critID string) (*Rating, bool) {
	r, ok := s[critID]
	return r, ok
}

// Responses projects the sheet into the audit shape stored on an evaluation
// record: raw level maps keyed by criterion subtitle.
func (s RatingSheet) Responses(rubric Rubric) map[string]map[string]Level {
	out := make(map[string]map[string]Level)
	for _, it := range rubric.Items() {
		for _, crit := range it.Criteria {
			if rating, ok := s[crit.ID]; ok {
				out[crit.Subtitle] = rating.Snapshot()
			}
		}
	}
	return out
}

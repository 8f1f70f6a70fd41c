package engine

import (
	"fmt"
	"strings"

	"github.com/xiaot623/caucus/internal/domain"
)

// DocumentSet holds the draft resolutions of a session and their amendments.
// Clauses are append-only; their text only changes through amendments.
type DocumentSet struct {
	resolutions []*domain.Resolution
	amendments  []*domain.Amendment
	clauseSeq   int
}

// CreateResolution starts a new draft.
func (d *DocumentSet) CreateResolution(title string, sponsors, signatories []string) (*domain.Resolution, error) {
	if len(sponsors) == 0 {
		return nil, fmt.Errorf("%w: a resolution needs at least one sponsor", domain.ErrInvalidArgument)
	}
	res := &domain.Resolution{
		ID:          fmt.Sprintf("res-%d", len(d.resolutions)+1),
		Title:       strings.TrimSpace(title),
		Sponsors:    append([]string{}, sponsors...),
		Signatories: append([]string{}, signatories...),
		Clauses:     []domain.Clause{},
		Status:      domain.ResolutionStatusDraft,
	}
	d.resolutions = append(d.resolutions, res)
	return res, nil
}

// Get returns the resolution with id.
func (d *DocumentSet) Get(id string) (*domain.Resolution, error) {
	for _, r := range d.resolutions {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownResolution, id)
}

// AddClause appends a clause to a draft resolution.
func (d *DocumentSet) AddClause(resolutionID string, kind domain.ClauseKind, text string) (*domain.Clause, error) {
	if kind != domain.ClauseKindPreambulatory && kind != domain.ClauseKindOperative {
		return nil, fmt.Errorf("%w: clause kind %q", domain.ErrInvalidArgument, kind)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: clause text is required", domain.ErrInvalidArgument)
	}
	res, err := d.Get(resolutionID)
	if err != nil {
		return nil, err
	}
	if res.Status != domain.ResolutionStatusDraft {
		return nil, fmt.Errorf("%w: resolution %s is %s", domain.ErrInvalidArgument, res.ID, res.Status)
	}
	d.clauseSeq++
	res.Clauses = append(res.Clauses, domain.Clause{
		ID:   fmt.Sprintf("clause-%d", d.clauseSeq),
		Kind: kind,
		Text: text,
	})
	return &res.Clauses[len(res.Clauses)-1], nil
}

// findClause returns the resolution holding clauseID and the clause's index in it.
func (d *DocumentSet) findClause(clauseID string) (*domain.Resolution, int, error) {
	for _, r := range d.resolutions {
		for i := range r.Clauses {
			if r.Clauses[i].ID == clauseID {
				return r, i, nil
			}
		}
	}
	return nil, 0, fmt.Errorf("%w: %s", domain.ErrUnknownClause, clauseID)
}

// Amend records an amendment. Friendly amendments apply at once; unfriendly ones stay PENDING.
func (d *DocumentSet) Amend(clauseID, text string, friendly bool) (*domain.Amendment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: amendment text is required", domain.ErrInvalidArgument)
	}
	res, _, err := d.findClause(clauseID)
	if err != nil {
		return nil, err
	}
	if res.Status != domain.ResolutionStatusDraft {
		return nil, fmt.Errorf("%w: resolution %s is %s", domain.ErrInvalidArgument, res.ID, res.Status)
	}
	a := &domain.Amendment{
		ID:           fmt.Sprintf("amend-%d", len(d.amendments)+1),
		ResolutionID: res.ID,
		ClauseID:     clauseID,
		Text:         text,
		Friendly:     friendly,
		Status:       domain.AmendmentStatusPending,
	}
	d.amendments = append(d.amendments, a)
	if friendly {
		if err := d.apply(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// GetAmendment returns the amendment with id.
func (d *DocumentSet) GetAmendment(id string) (*domain.Amendment, error) {
	for _, a := range d.amendments {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAmendment, id)
}

// Apply is the direct application path. Pending unfriendly amendments must go through a vote.
func (d *DocumentSet) Apply(id string) (*domain.Amendment, error) {
	a, err := d.GetAmendment(id)
	if err != nil {
		return nil, err
	}
	switch {
	case a.Status == domain.AmendmentStatusApplied:
		return a, nil
	case a.Status == domain.AmendmentStatusRejected:
		return nil, fmt.Errorf("%w: amendment %s was rejected", domain.ErrInvalidArgument, a.ID)
	case !a.Friendly:
		return nil, fmt.Errorf("%w: %s", domain.ErrAmendmentRequiresVote, a.ID)
	}
	return a, d.apply(a)
}

// Settle applies or rejects an unfriendly amendment once its vote has closed.
func (d *DocumentSet) Settle(id string, passed bool) (*domain.Amendment, error) {
	a, err := d.GetAmendment(id)
	if err != nil {
		return nil, err
	}
	if a.Status != domain.AmendmentStatusPending {
		return a, nil
	}
	if !passed {
		a.Status = domain.AmendmentStatusRejected
		return a, nil
	}
	return a, d.apply(a)
}

func (d *DocumentSet) apply(a *domain.Amendment) error {
	res, i, err := d.findClause(a.ClauseID)
	if err != nil {
		return err
	}
	clause := &res.Clauses[i]
	clause.History = append(clause.History, domain.ClauseRevision{
		PriorText:   clause.Text,
		AmendmentID: a.ID,
		Friendly:    a.Friendly,
	})
	clause.Text = a.Text
	a.Status = domain.AmendmentStatusApplied
	return nil
}

// SetOutcome records the outcome of a resolution vote.
func (d *DocumentSet) SetOutcome(id string, passed bool) (*domain.Resolution, error) {
	res, err := d.Get(id)
	if err != nil {
		return nil, err
	}
	if passed {
		res.Status = domain.ResolutionStatusPassed
	} else {
		res.Status = domain.ResolutionStatusFailed
	}
	return res, nil
}

// Drafts counts resolutions still awaiting a vote.
func (d *DocumentSet) Drafts() int {
	n := 0
	for _, r := range d.resolutions {
		if r.Status == domain.ResolutionStatusDraft {
			n++
		}
	}
	return n
}

// Resolutions returns deep copies of every resolution.
func (d *DocumentSet) Resolutions() []domain.Resolution {
	out := make([]domain.Resolution, 0, len(d.resolutions))
	for _, r := range d.resolutions {
		out = append(out, copyResolution(r))
	}
	return out
}

// Amendments returns copies of every amendment.
func (d *DocumentSet) Amendments() []domain.Amendment {
	out := make([]domain.Amendment, 0, len(d.amendments))
	for _, a := range d.amendments {
		out = append(out, *a)
	}
	return out
}

func (d *DocumentSet) clone() DocumentSet {
	c := DocumentSet{clauseSeq: d.clauseSeq}
	for _, r := range d.resolutions {
		cp := copyResolution(r)
		c.resolutions = append(c.resolutions, &cp)
	}
	for _, a := range d.amendments {
		cp := *a
		c.amendments = append(c.amendments, &cp)
	}
	return c
}

func copyResolution(r *domain.Resolution) domain.Resolution {
	cp := *r
	cp.Sponsors = append([]string{}, r.Sponsors...)
	cp.Signatories = append([]string{}, r.Signatories...)
	cp.Clauses = make([]domain.Clause, len(r.Clauses))
	for i, c := range r.Clauses {
		cp.Clauses[i] = c
		cp.Clauses[i].History = append([]domain.ClauseRevision(nil), c.History...)
	}
	return cp
}

// Package registry manages the set of named loans and which one is current.
// It owns the working session and moves state between it and storage.
package registry

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mcclellann/emiTracker/pkg/csvio"
	"github.com/mcclellann/emiTracker/pkg/models"
	"github.com/mcclellann/emiTracker/pkg/session"
	"github.com/mcclellann/emiTracker/pkg/store"
)

// ErrNoCurrentLoan is returned by operations that need a selected loan.
var ErrNoCurrentLoan = errors.New("no loan selected")

// emptyState overwrites a blob that no longer has content.
var emptyState = []byte("null")

// Registry handles the loan profiles and the session of the current one.
type Registry struct {
	storage store.Storage
	logger  *logrus.Logger
	session *session.Session
	current *models.LoanProfile
}

// New creates a Registry and restores the last current loan. When that loan
// is gone the first stored loan is selected instead.
func New(s store.Storage, logger *logrus.Logger) (*Registry, error) {
	r := &Registry{
		storage: s,
		logger:  logger,
		session: session.New(),
	}

	id, err := s.GetCurrentProfileID()
	if err != nil {
		return nil, fmt.Errorf("failed to read current loan: %w", err)
	}
	if id != "" {
		if err := r.load(id); err == nil {
			return r, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		r.logger.WithField("loan_id", id).Warn("Current loan no longer exists")
	}

	if err := r.selectFirst(); err != nil {
		return nil, err
	}
	return r, nil
}

// Session returns the working session of the current loan.
func (r *Registry) Session() *session.Session {
	return r.session
}

// Current returns the selected loan, or nil when none is selected.
func (r *Registry) Current() *models.LoanProfile {
	if r.current == nil {
		return nil
	}
	p := *r.current
	return &p
}

// List returns every loan in display order.
func (r *Registry) List() ([]*models.LoanProfile, error) {
	return r.storage.GetAllProfiles()
}

// Get returns one loan.
func (r *Registry) Get(id string) (*models.LoanProfile, error) {
	return r.storage.GetProfile(id)
}

// Create stores a new loan and switches to it.
func (r *Registry) Create(name string, loanType models.LoanType, customType string) (*models.LoanProfile, error) {
	name, customType = strings.TrimSpace(name), strings.TrimSpace(customType)
	if err := models.ValidateIdentity(name, loanType, customType); err != nil {
		return nil, err
	}
	if loanType != models.LoanTypeOther {
		customType = ""
	}

	now := time.Now()
	profile := &models.LoanProfile{
		ID:         uuid.NewString(),
		Name:       name,
		Type:       loanType,
		CustomType: customType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.storage.CreateProfile(profile); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"loan_id": profile.ID,
		"name":    profile.Name,
		"type":    profile.Type,
	}).Info("Loan created")

	if err := r.SwitchTo(profile.ID); err != nil {
		return nil, err
	}
	return profile, nil
}

// Update renames a loan or changes its type.
func (r *Registry) Update(id, name string, loanType models.LoanType, customType string) (*models.LoanProfile, error) {
	name, customType = strings.TrimSpace(name), strings.TrimSpace(customType)
	if err := models.ValidateIdentity(name, loanType, customType); err != nil {
		return nil, err
	}
	if loanType != models.LoanTypeOther {
		customType = ""
	}

	profile, err := r.storage.GetProfile(id)
	if err != nil {
		return nil, err
	}
	profile.Name = name
	profile.Type = loanType
	profile.CustomType = customType
	profile.UpdatedAt = time.Now()

	if err := r.storage.UpdateProfile(profile); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}
	if r.current != nil && r.current.ID == id {
		r.current = profile
	}

	r.logger.WithField("loan_id", id).Info("Loan updated")
	return profile, nil
}

// SwitchTo saves the current loan and loads another one.
func (r *Registry) SwitchTo(id string) error {
	if r.current != nil && r.current.ID == id {
		return nil
	}
	if _, err := r.storage.GetProfile(id); err != nil {
		return err
	}
	if r.current != nil {
		if err := r.Save(); err != nil {
			return err
		}
	}
	if err := r.load(id); err != nil {
		return err
	}
	if err := r.storage.SetCurrentProfileID(id); err != nil {
		return err
	}

	r.logger.WithField("loan_id", id).Info("Switched loan")
	return nil
}

// Delete removes a loan and all of its state. Deleting the current loan
// selects the first remaining one.
func (r *Registry) Delete(id string) error {
	if err := r.storage.DeleteProfile(id); err != nil {
		return err
	}
	r.logger.WithField("loan_id", id).Info("Loan deleted")

	if r.current == nil || r.current.ID != id {
		return nil
	}
	r.current = nil
	r.session.Clear()
	return r.selectFirst()
}

// Save persists the session of the current loan.
func (r *Registry) Save() error {
	if r.current == nil {
		return ErrNoCurrentLoan
	}
	snap, err := r.session.Snapshot()
	if err != nil {
		return err
	}
	for _, key := range session.Keys {
		data := snap[key]
		if data == nil {
			data = emptyState
		}
		if err := r.storage.SaveState(r.current.ID, key, data); err != nil {
			return err
		}
	}
	r.session.MarkSaved()

	r.logger.WithField("loan_id", r.current.ID).Debug("Loan saved")
	return nil
}

// ImportCSV applies a complete export to the current loan. Without a current
// loan one is created from the file's identity. Nothing changes when the
// file does not validate.
func (r *Registry) ImportCSV(in io.Reader) error {
	doc, err := csvio.Import(in)
	if err != nil {
		return err
	}
	return r.apply(doc)
}

// apply replaces the current loan with doc, creating a loan first when none
// is current. The identity is only touched once the schedule was replaced.
func (r *Registry) apply(doc *csvio.Document) error {
	var created *models.LoanProfile
	if r.current == nil {
		name, loanType, customType := "My Loan", models.LoanTypePersonal, ""
		if id := doc.Identity; id != nil && models.ValidateIdentity(id.Name, id.Type, id.CustomType) == nil {
			name, loanType, customType = id.Name, id.Type, id.CustomType
		}
		p, err := r.Create(name, loanType, customType)
		if err != nil {
			return err
		}
		created = p
	}

	if err := r.session.Replace(doc.Params, doc.EMIAuto, doc.States, doc.Prepayments, doc.Charges); err != nil {
		if created != nil {
			if delErr := r.Delete(created.ID); delErr != nil {
				r.logger.WithError(delErr).Warn("Failed to remove loan created for a rejected import")
			}
		}
		return err
	}

	if id := doc.Identity; created == nil && id != nil {
		if _, err := r.Update(r.current.ID, id.Name, id.Type, id.CustomType); err != nil {
			r.logger.WithError(err).Warn("Ignoring imported loan identity")
		}
	}

	r.logger.WithFields(logrus.Fields{
		"loan_id": r.current.ID,
		"months":  len(doc.States),
	}).Info("Loan imported")
	return r.Save()
}

// ExportCSV writes the complete export of the current loan.
func (r *Registry) ExportCSV(w io.Writer) error {
	if r.current == nil {
		return ErrNoCurrentLoan
	}
	return csvio.Export(w, r.current, r.session)
}

// ExportPayments writes prepayments and charges side by side.
func (r *Registry) ExportPayments(w io.Writer) error {
	months, err := r.scheduleMonths()
	if err != nil {
		return err
	}
	return csvio.ExportPaymentDetails(w, months, r.session.Prepayments(), r.session.Charges())
}

// ExportPrepayments writes the prepayment history.
func (r *Registry) ExportPrepayments(w io.Writer) error {
	months, err := r.scheduleMonths()
	if err != nil {
		return err
	}
	return csvio.ExportPrepaymentDetails(w, months, r.session.Prepayments())
}

// ExportCharges writes the charge history.
func (r *Registry) ExportCharges(w io.Writer) error {
	months, err := r.scheduleMonths()
	if err != nil {
		return err
	}
	return csvio.ExportChargeDetails(w, months, r.session.Charges())
}

func (r *Registry) scheduleMonths() (int, error) {
	if r.current == nil {
		return 0, ErrNoCurrentLoan
	}
	if !r.session.HasSchedule() {
		return 0, session.ErrNoSchedule
	}
	return len(r.session.Rows()), nil
}

// load restores the stored state of id into a fresh session.
func (r *Registry) load(id string) error {
	profile, err := r.storage.GetProfile(id)
	if err != nil {
		return err
	}

	snap := session.Snapshot{}
	for _, key := range session.Keys {
		data, err := r.storage.LoadState(id, key)
		if err != nil {
			return err
		}
		snap[key] = data
	}

	for _, problem := range r.session.Restore(snap) {
		r.logger.WithFields(logrus.Fields{
			"loan_id": id,
			"error":   problem,
		}).Warn("Discarded unreadable loan state")
	}
	r.current = profile
	return nil
}

// selectFirst loads the first stored loan, or leaves nothing selected.
func (r *Registry) selectFirst() error {
	profiles, err := r.storage.GetAllProfiles()
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		r.current = nil
		r.session.Clear()
		return r.storage.SetCurrentProfileID("")
	}
	if err := r.load(profiles[0].ID); err != nil {
		return err
	}
	return r.storage.SetCurrentProfileID(profiles[0].ID)
}

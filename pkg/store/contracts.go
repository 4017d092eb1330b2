package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"dealdesk/pkg/contract"
	"dealdesk/pkg/logger"
	"dealdesk/pkg/models"
)

// SaveContract persists a contract record under its meta key.
func SaveContract(c *models.Contract) error {
	if db == nil {
		return errNotOpen
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal contract: %w", err)
	}
	if err := db.Set(contractMetaKey(c.ID), data, pebble.Sync); err != nil {
		logger.Error("save_contract_failed", "contract", c.ID, "error", err)
		return err
	}
	logger.Info("contract_saved", "contract", c.ID, "status", string(c.Status))
	return nil
}

// CreateContract persists a new contract and bumps the create counter.
func CreateContract(c *models.Contract) error {
	if err := SaveContract(c); err != nil {
		return err
	}
	contractsCreated.Inc()
	return nil
}

// GetContract returns the contract record for the given id.
func GetContract(id string) (*models.Contract, error) {
	if db == nil {
		return nil, errNotOpen
	}
	v, closer, err := db.Get(contractMetaKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	var c models.Contract
	if err := json.Unmarshal(v, &c); err != nil {
		return nil, fmt.Errorf("invalid stored contract: %w", err)
	}
	return &c, nil
}

// ListContracts returns all contract records, including soft-deleted
// ones; callers filter.
func ListContracts() ([]models.Contract, error) {
	if db == nil {
		return nil, errNotOpen
	}
	prefix := []byte("contract:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Contract
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !bytes.HasSuffix(iter.Key(), []byte(":meta")) {
			continue
		}
		var c models.Contract
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, iter.Error()
}

// UpdateContract applies edits to a draft contract. Title, Data and
// Metadata are the only mutable fields; any other status is immutable.
func UpdateContract(id string, title string, data, metadata interface{}) (*models.Contract, error) {
	if db == nil {
		return nil, errNotOpen
	}
	appendMu.Lock()
	defer appendMu.Unlock()

	c, err := GetContract(id)
	if err != nil {
		return nil, err
	}
	if c.Status != models.ContractDraft {
		return nil, fmt.Errorf("%w: contract is %s", contract.ErrImmutable, c.Status)
	}
	if title != "" {
		c.Title = title
	}
	if data != nil {
		c.Data = data
	}
	if metadata != nil {
		c.Metadata = metadata
	}
	c.UpdatedTS = time.Now().UTC().UnixNano()
	if err := SaveContract(c); err != nil {
		return nil, err
	}
	return c, nil
}

// TransitionContract moves a contract to a new status under the
// lifecycle rules.
func TransitionContract(id string, target models.ContractStatus) (*models.Contract, error) {
	if db == nil {
		return nil, errNotOpen
	}
	appendMu.Lock()
	defer appendMu.Unlock()

	c, err := GetContract(id)
	if err != nil {
		return nil, err
	}
	if err := contract.CanTransition(c.Status, target); err != nil {
		return nil, err
	}
	c.Status = target
	c.UpdatedTS = time.Now().UTC().UnixNano()
	if err := SaveContract(c); err != nil {
		return nil, err
	}
	contractTransitions.WithLabelValues(string(target)).Inc()
	return c, nil
}

// SoftDeleteContract marks the contract as deleted; the retention
// sweeper purges it later.
func SoftDeleteContract(id string) error {
	if db == nil {
		return errNotOpen
	}
	c, err := GetContract(id)
	if err != nil {
		return err
	}
	c.Deleted = true
	c.DeletedTS = time.Now().UTC().UnixNano()
	if err := SaveContract(c); err != nil {
		return err
	}
	logger.Info("contract_soft_deleted", "contract", id)
	return nil
}

// PurgeContract removes a contract and its collaborator and signature
// rows. Used only by retention on soft-deleted records.
func PurgeContract(id string) error {
	if db == nil {
		return errNotOpen
	}
	cols, err := ListCollaborators(id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	wb := db.NewBatch()
	for _, col := range cols {
		_ = wb.Delete(collabKey(id, col.ID), nil)
		_ = wb.Delete(collabIndexKey(col.ID), nil)
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	prefix := sigPrefix(id)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		_ = wb.Delete(append([]byte(nil), iter.Key()...), nil)
	}
	iterErr := iter.Error()
	_ = iter.Close()
	if iterErr != nil {
		return iterErr
	}
	_ = wb.Delete(contractMetaKey(id), nil)
	if err := db.Apply(wb, pebble.Sync); err != nil {
		logger.Error("purge_contract_failed", "contract", id, "error", err)
		return err
	}
	logger.Info("contract_purged", "contract", id)
	return nil
}

// PurgeDeletedContracts removes every soft-deleted contract whose
// deletion timestamp is older than the cutoff. Returns the number
// purged.
func PurgeDeletedContracts(cutoff time.Time) (int, error) {
	if db == nil {
		return 0, errNotOpen
	}
	all, err := ListContracts()
	if err != nil {
		return 0, err
	}
	cut := cutoff.UTC().UnixNano()
	purged := 0
	for _, c := range all {
		if !c.Deleted || c.DeletedTS > cut {
			continue
		}
		if err := PurgeContract(c.ID); err != nil {
			logger.Warn("retention_purge_skip", "contract", c.ID, "error", err)
			continue
		}
		purged++
	}
	return purged, nil
}

// AddCollaborator validates and persists a collaborator on a contract.
func AddCollaborator(col *models.Collaborator) error {
	if db == nil {
		return errNotOpen
	}
	appendMu.Lock()
	defer appendMu.Unlock()

	if _, err := GetContract(col.Contract); err != nil {
		return err
	}
	existing, err := ListCollaborators(col.Contract)
	if err != nil {
		return err
	}
	if err := contract.ValidateCollaborator(col, existing); err != nil {
		return err
	}
	data, err := json.Marshal(col)
	if err != nil {
		return fmt.Errorf("failed to marshal collaborator: %w", err)
	}
	pk := collabKey(col.Contract, col.ID)
	wb := db.NewBatch()
	_ = wb.Set(pk, data, nil)
	_ = wb.Set(collabIndexKey(col.ID), pk, nil)
	if err := db.Apply(wb, pebble.Sync); err != nil {
		logger.Error("save_collaborator_failed", "contract", col.Contract, "collaborator", col.ID, "error", err)
		return err
	}
	logger.Info("collaborator_added", "contract", col.Contract, "collaborator", col.ID)
	return nil
}

// ListCollaborators returns all collaborators on a contract in
// insertion order.
func ListCollaborators(contractID string) ([]models.Collaborator, error) {
	if db == nil {
		return nil, errNotOpen
	}
	prefix := collabPrefix(contractID)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Collaborator
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var c models.Collaborator
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, iter.Error()
}

// GetCollaborator returns a collaborator by id.
func GetCollaborator(colID string) (*models.Collaborator, error) {
	if db == nil {
		return nil, errNotOpen
	}
	pk, closer, err := db.Get(collabIndexKey(colID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	key := append([]byte(nil), pk...)
	closer.Close()
	v, closer, err := db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	var c models.Collaborator
	if err := json.Unmarshal(v, &c); err != nil {
		return nil, fmt.Errorf("invalid stored collaborator: %w", err)
	}
	return &c, nil
}

// RecordSignature flips the collaborator to signed, stores the
// signature row and, when every collaborator has signed, advances the
// contract to signed. All writes land in one batch.
func RecordSignature(sig *models.Signature) error {
	if db == nil {
		return errNotOpen
	}
	appendMu.Lock()
	defer appendMu.Unlock()

	col, err := GetCollaborator(sig.Collaborator)
	if err != nil {
		return err
	}
	if col.Contract != sig.Contract {
		return fmt.Errorf("%w: collaborator does not belong to contract", contract.ErrValidation)
	}
	if col.Status == models.CollaboratorSigned {
		return fmt.Errorf("%w: collaborator already signed", contract.ErrInvalidTransition)
	}
	if col.Status == models.CollaboratorDeclined {
		return fmt.Errorf("%w: collaborator declined", contract.ErrInvalidTransition)
	}
	c, err := GetContract(sig.Contract)
	if err != nil {
		return err
	}
	if c.Status.Terminal() {
		return fmt.Errorf("%w: contract already %s", contract.ErrInvalidTransition, c.Status)
	}

	now := time.Now().UTC().UnixNano()
	sig.SignedTS = now
	col.Status = models.CollaboratorSigned
	col.SignedTS = now

	sigData, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to marshal signature: %w", err)
	}
	colData, err := json.Marshal(col)
	if err != nil {
		return fmt.Errorf("failed to marshal collaborator: %w", err)
	}

	wb := db.NewBatch()
	_ = wb.Set(sigKey(sig.Contract, sig.ID), sigData, nil)
	_ = wb.Set(collabKey(col.Contract, col.ID), colData, nil)

	// advance the contract when this was the last outstanding signature
	cols, err := ListCollaborators(sig.Contract)
	if err != nil {
		return err
	}
	for i := range cols {
		if cols[i].ID == col.ID {
			cols[i] = *col
		}
	}
	if contract.AllSigned(cols) {
		c.Status = models.ContractSigned
		c.UpdatedTS = now
		cData, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal contract: %w", err)
		}
		_ = wb.Set(contractMetaKey(c.ID), cData, nil)
	}

	if err := db.Apply(wb, pebble.Sync); err != nil {
		logger.Error("record_signature_failed", "contract", sig.Contract, "collaborator", sig.Collaborator, "error", err)
		return err
	}
	signaturesRecorded.Inc()
	if c.Status == models.ContractSigned {
		contractTransitions.WithLabelValues(string(models.ContractSigned)).Inc()
		logger.Info("contract_fully_signed", "contract", c.ID)
	}
	logger.Info("signature_recorded", "contract", sig.Contract, "collaborator", sig.Collaborator)
	return nil
}

// DeclineCollaborator marks a collaborator as declined.
func DeclineCollaborator(colID string) (*models.Collaborator, error) {
	if db == nil {
		return nil, errNotOpen
	}
	appendMu.Lock()
	defer appendMu.Unlock()

	col, err := GetCollaborator(colID)
	if err != nil {
		return nil, err
	}
	if col.Status != models.CollaboratorPending {
		return nil, fmt.Errorf("%w: collaborator already %s", contract.ErrInvalidTransition, col.Status)
	}
	col.Status = models.CollaboratorDeclined
	data, err := json.Marshal(col)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal collaborator: %w", err)
	}
	if err := db.Set(collabKey(col.Contract, col.ID), data, pebble.Sync); err != nil {
		return nil, err
	}
	logger.Info("collaborator_declined", "contract", col.Contract, "collaborator", col.ID)
	return col, nil
}

// ListSignatures returns all signature rows for a contract.
func ListSignatures(contractID string) ([]models.Signature, error) {
	if db == nil {
		return nil, errNotOpen
	}
	prefix := sigPrefix(contractID)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Signature
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var s models.Signature
		if err := json.Unmarshal(iter.Value(), &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, iter.Error()
}

// SaveTemplate persists a contract template.
func SaveTemplate(t *models.ContractTemplate) error {
	if db == nil {
		return errNotOpen
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}
	if err := db.Set(templateKey(t.ID), data, pebble.Sync); err != nil {
		logger.Error("save_template_failed", "template", t.ID, "error", err)
		return err
	}
	logger.Info("template_saved", "template", t.ID, "type", t.Type)
	return nil
}

// GetTemplate returns a template by id.
func GetTemplate(id string) (*models.ContractTemplate, error) {
	if db == nil {
		return nil, errNotOpen
	}
	v, closer, err := db.Get(templateKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	var t models.ContractTemplate
	if err := json.Unmarshal(v, &t); err != nil {
		return nil, fmt.Errorf("invalid stored template: %w", err)
	}
	return &t, nil
}

// ListTemplates returns all stored templates.
func ListTemplates() ([]models.ContractTemplate, error) {
	if db == nil {
		return nil, errNotOpen
	}
	prefix := []byte("template:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.ContractTemplate
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var t models.ContractTemplate
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, iter.Error()
}

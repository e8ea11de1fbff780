package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/openbrgy/portal/internal/mailer"
	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// defaultValidity is the validity window stamped on approval when none is given.
const defaultValidity = 180 * 24 * time.Hour

// allowedTransitions is the status machine: staff/admin actions only.
// Approved may still move to completed (document released); rejected and
// completed admit nothing.
var allowedTransitions = map[string][]string{
	models.StatusPending:    {models.StatusProcessing, models.StatusApproved, models.StatusRejected},
	models.StatusProcessing: {models.StatusApproved, models.StatusRejected},
	models.StatusApproved:   {models.StatusCompleted},
}

func transitionAllowed(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CreateRequestInput is the resident submission payload.
type CreateRequestInput struct {
	Type        string            `json:"type"`
	Purpose     string            `json:"purpose"`
	TemplateID  *string           `json:"templateId,omitempty"`
	FieldValues map[string]any    `json:"fieldValues,omitempty"`
}

// CreateRequest records a resident submission with status pending. Staff get
// a staff_approval-category heads-up so new requests surface without polling.
func CreateRequest(db *gorm.DB, notifier *Notifier, requester *models.User, in CreateRequestInput) (*models.DocumentRequest, error) {
	if in.Type == "" {
		return nil, types.ValidationError("document type is required")
	}
	if in.TemplateID != nil {
		var tpl models.DocumentTemplate
		if err := db.First(&tpl, "id = ? AND active = ?", *in.TemplateID, true).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, types.ValidationError("unknown template")
			}
			return nil, err
		}
	}

	req := models.DocumentRequest{
		Type:              in.Type,
		RequesterID:       requester.ID,
		RequesterUsername: requester.Username,
		BarangayID:        requester.BarangayID,
		Purpose:           in.Purpose,
		Status:            models.StatusPending,
		FieldValues:       datatypes.JSONMap(in.FieldValues),
		TemplateID:        in.TemplateID,
	}
	if err := db.Create(&req).Error; err != nil {
		return nil, err
	}

	if notifier != nil {
		_, err := notifier.NotifyRole(models.RoleStaff, models.NotifyDocuments,
			"New document request",
			fmt.Sprintf("%s requested a %s", requester.Username, req.Type),
			models.DocumentPayload{RequestID: req.ID, RequestType: req.Type, Status: req.Status})
		if err != nil {
			log.Printf("notify staff of request %s: %v", req.ID, err)
		}
	}
	return &req, nil
}

// RequestFilter narrows ListRequests.
type RequestFilter struct {
	RequesterID string
	Status      string
	Type        string
	Limit       int
	Offset      int
}

// ListRequests returns requests newest first. Handlers scope RequesterID to
// the caller for non-staff roles.
func ListRequests(db *gorm.DB, f RequestFilter) ([]models.DocumentRequest, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	q := db.Model(&models.DocumentRequest{})
	if f.RequesterID != "" {
		q = q.Where("requester_id = ?", f.RequesterID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	var out []models.DocumentRequest
	err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&out).Error
	return out, err
}

// GetRequest loads one request.
func GetRequest(db *gorm.DB, id string) (*models.DocumentRequest, error) {
	var req models.DocumentRequest
	if err := db.First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFoundError("document request not found")
		}
		return nil, err
	}
	return &req, nil
}

// TransitionStatus moves a request through the status machine. The update is
// conditional on the status the decision was made against, so two concurrent
// transitions cannot both apply: the loser gets a conflict instead of
// double-firing side effects. Repeating an identical transition is a no-op
// with no duplicate document number or notification.
func TransitionStatus(db *gorm.DB, notifier *Notifier, mail *mailer.Mailer, id, to, remarks string) (*models.DocumentRequest, error) {
	switch to {
	case models.StatusProcessing, models.StatusApproved, models.StatusRejected, models.StatusCompleted:
	default:
		return nil, types.ValidationError("unknown status: " + to)
	}

	var req models.DocumentRequest
	var applied bool

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.NotFoundError("document request not found")
			}
			return err
		}

		// Identical transition: idempotent no-op.
		if req.Status == to {
			return nil
		}
		if !transitionAllowed(req.Status, to) {
			return types.ConflictError(fmt.Sprintf("cannot move request from %s to %s", req.Status, to))
		}

		updates := map[string]any{"status": to}
		if remarks != "" {
			updates["remarks"] = remarks
		}
		if to == models.StatusApproved {
			if req.DocumentNumber == nil {
				number, err := nextDocumentNumber(tx, time.Now().Year())
				if err != nil {
					return err
				}
				updates["document_number"] = number
			}
			if req.ValidUntil == nil {
				updates["valid_until"] = time.Now().Add(defaultValidity)
			}
		}

		res := tx.Model(&models.DocumentRequest{}).
			Where("id = ? AND status = ?", req.ID, req.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ConflictError("request was modified concurrently, reload and retry")
		}

		applied = true
		return tx.First(&req, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}

	// Side effects fire only when this call actually applied the transition.
	if applied && (to == models.StatusApproved || to == models.StatusRejected) {
		dispatchDecision(db, notifier, mail, &req, remarks)
	}
	return &req, nil
}

// dispatchDecision sends the single notification (and best-effort email) for
// an approval or rejection.
func dispatchDecision(db *gorm.DB, notifier *Notifier, mail *mailer.Mailer, req *models.DocumentRequest, remarks string) {
	number := ""
	if req.DocumentNumber != nil {
		number = *req.DocumentNumber
	}
	code := ""
	if req.TransactionCode != nil {
		code = *req.TransactionCode
	}

	if notifier != nil {
		title := "Document request " + req.Status
		message := fmt.Sprintf("Your %s request is now %s.", req.Type, req.Status)
		if number != "" {
			message += " Document number: " + number
		}
		_, err := notifier.Notify(req.RequesterID, models.NotifyDocuments, title, message, models.DocumentPayload{
			RequestID:       req.ID,
			RequestType:     req.Type,
			Status:          req.Status,
			DocumentNumber:  number,
			TransactionCode: code,
			Remarks:         remarks,
		})
		if err != nil {
			log.Printf("notify requester of %s %s: %v", req.ID, req.Status, err)
		}
	}

	if mail.Enabled() {
		var requester models.User
		if err := db.First(&requester, "id = ?", req.RequesterID).Error; err == nil && requester.Email != "" {
			name := requester.FirstName
			if name == "" {
				name = requester.Username
			}
			if err := mail.SendStatusUpdate(requester.Email, name, req.Type, req.Status, number, remarks); err != nil {
				// Dependency failure: logged distinctly, never fails the transition.
				log.Printf("dependency error: status mail for %s: %v", req.ID, err)
			}
		}
	}
}

// nextDocumentNumber allocates the next per-year sequential number inside the
// caller's transaction. The increment runs as a single UPDATE so concurrent
// approvals serialize on the sequence row and cannot mint the same number.
func nextDocumentNumber(tx *gorm.DB, year int) (string, error) {
	res := tx.Model(&models.DocumentSequence{}).
		Where("year = ?", year).
		Update("last_number", gorm.Expr("last_number + ?", 1))
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		seq := models.DocumentSequence{Year: year, LastNumber: 1}
		if err := tx.Create(&seq).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Another approval created the row first; increment it.
				return nextDocumentNumber(tx, year)
			}
			return "", err
		}
		return fmt.Sprintf("%d-%05d", year, seq.LastNumber), nil
	}

	var seq models.DocumentSequence
	if err := tx.First(&seq, "year = ?", year).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%05d", year, seq.LastNumber), nil
}

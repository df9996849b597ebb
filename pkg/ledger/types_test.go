package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func validCard() *Card {
	return &Card{
		ID:             uuid.New().String(),
		OrganizationID: "org-1",
		Slug:           "email",
		Label:          "Email",
		Variant:        VariantEmail,
		SubjectKind:    "beneficiary",
	}
}

func TestCardValidate(t *testing.T) {
	t.Run("valid card", func(t *testing.T) {
		assert.NoError(t, validCard().Validate())
	})

	t.Run("rejects non-UUID id", func(t *testing.T) {
		c := validCard()
		c.ID = "not-a-uuid"
		assert.Error(t, c.Validate())
	})

	t.Run("rejects empty slug", func(t *testing.T) {
		c := validCard()
		c.Slug = ""
		assert.Error(t, c.Validate())
	})

	t.Run("rejects unknown variant", func(t *testing.T) {
		c := validCard()
		c.Variant = "BLOB"
		assert.Error(t, c.Validate())
	})
}

func TestDeliverableValidate(t *testing.T) {
	valid := func() *Deliverable {
		return &Deliverable{
			ID:             uuid.New().String(),
			OrganizationID: "org-1",
			Name:           "Welcome Email",
			SubjectKind:    "beneficiary",
			Status:         DeliverableStatusActive,
		}
	}

	t.Run("valid deliverable", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("rejects non-UUID prerequisite", func(t *testing.T) {
		d := valid()
		d.RequiredDeliverableIDs = []string{"nope"}
		assert.Error(t, d.Validate())
	})

	t.Run("rejects invalid schedule day", func(t *testing.T) {
		d := valid()
		d.Schedule = &Schedule{DaysOfWeek: []int{-1}}
		assert.Error(t, d.Validate())
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		d := valid()
		d.Status = "archived"
		assert.Error(t, d.Validate())
	})
}

func TestEvaluationValidate(t *testing.T) {
	valid := func() *Evaluation {
		return &Evaluation{
			ID:             uuid.New().String(),
			DeliverableID:  uuid.New().String(),
			OrganizationID: "org-1",
			Context:        EvaluationContext{SubjectKind: "beneficiary", SubjectID: "b-1"},
			Status:         EvaluationStatusPending,
		}
	}

	t.Run("valid evaluation", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("rejects missing subject context", func(t *testing.T) {
		e := valid()
		e.Context.SubjectID = ""
		assert.Error(t, e.Validate())
	})

	t.Run("rejects completed_at on non-terminal status", func(t *testing.T) {
		e := valid()
		e.CompletedAtMs = 12345
		assert.Error(t, e.Validate())
	})

	t.Run("accepts completed_at on terminal status", func(t *testing.T) {
		e := valid()
		e.Status = EvaluationStatusFailed
		e.CompletedAtMs = 12345
		assert.NoError(t, e.Validate())
	})
}

func TestEvaluationStatusTerminal(t *testing.T) {
	assert.False(t, EvaluationStatusPending.Terminal())
	assert.False(t, EvaluationStatusRunning.Terminal())
	assert.True(t, EvaluationStatusCompleted.Terminal())
	assert.True(t, EvaluationStatusFailed.Terminal())
}

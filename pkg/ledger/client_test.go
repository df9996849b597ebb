package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.InstanceName())
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	err := client.Ping(ctx)
	assert.NoError(t, err)
}

func TestCreateCard(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("creates and retrieves card", func(t *testing.T) {
		card, err := client.CreateCard(ctx, CardInput{
			OrganizationID: "org-1",
			Slug:           "email",
			Label:          "Email Address",
			Variant:        VariantEmail,
			Security:       "pii",
			SubjectKind:    "beneficiary",
			CreatedBy:      "test",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, card.ID)

		retrieved, err := client.GetCard(ctx, card.ID)
		require.NoError(t, err)
		assert.Equal(t, "email", retrieved.Slug)
		assert.Equal(t, VariantEmail, retrieved.Variant)
		assert.Equal(t, "pii", retrieved.Security)
	})

	t.Run("idempotent on same slug and variant", func(t *testing.T) {
		first, err := client.CreateCard(ctx, CardInput{
			OrganizationID: "org-1",
			Slug:           "phone",
			Label:          "Phone",
			Variant:        VariantString,
			SubjectKind:    "beneficiary",
		})
		require.NoError(t, err)

		second, err := client.CreateCard(ctx, CardInput{
			OrganizationID: "org-1",
			Slug:           "phone",
			Label:          "Phone (duplicate attempt)",
			Variant:        VariantString,
			SubjectKind:    "beneficiary",
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Phone", second.Label)
	})

	t.Run("rejects variant change on existing slug", func(t *testing.T) {
		_, err := client.CreateCard(ctx, CardInput{
			OrganizationID: "org-1",
			Slug:           "phone",
			Label:          "Phone",
			Variant:        VariantNumber,
			SubjectKind:    "beneficiary",
		})
		require.Error(t, err)
		assert.True(t, IsConflict(err))
	})

	t.Run("same slug in another organization is independent", func(t *testing.T) {
		card, err := client.CreateCard(ctx, CardInput{
			OrganizationID: "org-2",
			Slug:           "phone",
			Label:          "Phone",
			Variant:        VariantNumber,
			SubjectKind:    "beneficiary",
		})
		require.NoError(t, err)
		assert.Equal(t, VariantNumber, card.Variant)
	})

	t.Run("rejects invalid variant", func(t *testing.T) {
		_, err := client.CreateCard(ctx, CardInput{
			OrganizationID: "org-1",
			Slug:           "bad",
			Variant:        CardVariant("BLOB"),
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid variant")
	})
}

func TestGetCardBySlug(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	created, err := client.CreateCard(ctx, CardInput{
		OrganizationID: "org-1",
		Slug:           "household-size",
		Label:          "Household Size",
		Variant:        VariantNumber,
		SubjectKind:    "household",
	})
	require.NoError(t, err)

	t.Run("resolves existing slug", func(t *testing.T) {
		card, err := client.GetCardBySlug(ctx, "org-1", "household-size")
		require.NoError(t, err)
		assert.Equal(t, created.ID, card.ID)
	})

	t.Run("unknown slug returns ErrNotFound", func(t *testing.T) {
		_, err := client.GetCardBySlug(ctx, "org-1", "nope")
		assert.True(t, IsNotFound(err))
	})
}

func TestListCards(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	for _, in := range []CardInput{
		{OrganizationID: "org-1", Slug: "a", Label: "A", Variant: VariantString, SubjectKind: "beneficiary"},
		{OrganizationID: "org-1", Slug: "b", Label: "B", Variant: VariantString, SubjectKind: "household"},
		{OrganizationID: "org-2", Slug: "c", Label: "C", Variant: VariantString, SubjectKind: "beneficiary"},
	} {
		_, err := client.CreateCard(ctx, in)
		require.NoError(t, err)
	}

	t.Run("lists all cards for organization", func(t *testing.T) {
		cards, err := client.ListCards(ctx, "org-1", "")
		require.NoError(t, err)
		assert.Len(t, cards, 2)
	})

	t.Run("filters by subject kind", func(t *testing.T) {
		cards, err := client.ListCards(ctx, "org-1", "household")
		require.NoError(t, err)
		require.Len(t, cards, 1)
		assert.Equal(t, "b", cards[0].Slug)
	})

	t.Run("empty for unknown organization", func(t *testing.T) {
		cards, err := client.ListCards(ctx, "org-9", "")
		require.NoError(t, err)
		assert.Empty(t, cards)
	})
}

func TestCreateProcedure(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	card, err := client.CreateCard(ctx, CardInput{
		OrganizationID: "org-1",
		Slug:           "email",
		Label:          "Email",
		Variant:        VariantEmail,
		SubjectKind:    "beneficiary",
	})
	require.NoError(t, err)

	t.Run("creates procedure with resolvable refs", func(t *testing.T) {
		p := &Procedure{
			OrganizationID: "org-1",
			Name:           "Intake",
			Source:         "intake-form",
			Subject:        "beneficiary",
			CardRefs: []CardRef{
				{CardID: card.ID, Required: true, WriteTo: "email"},
			},
		}
		require.NoError(t, client.CreateProcedure(ctx, p))
		assert.NotEmpty(t, p.ID)

		retrieved, err := client.GetProcedure(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, retrieved.CardRefs, 1)
		assert.Equal(t, card.ID, retrieved.CardRefs[0].CardID)
		assert.True(t, retrieved.CardRefs[0].Required)
	})

	t.Run("rejects unresolvable card reference", func(t *testing.T) {
		p := &Procedure{
			OrganizationID: "org-1",
			Name:           "Broken",
			CardRefs:       []CardRef{{CardID: uuid.New().String()}},
		}
		err := client.CreateProcedure(ctx, p)
		assert.True(t, IsNotFound(err))
	})
}

func TestUpdateProcedure(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	p := &Procedure{OrganizationID: "org-1", Name: "Intake"}
	require.NoError(t, client.CreateProcedure(ctx, p))

	t.Run("bumps updated_at and persists changes", func(t *testing.T) {
		before := p.UpdatedAtMs
		time.Sleep(2 * time.Millisecond)

		p.Name = "Intake v2"
		require.NoError(t, client.UpdateProcedure(ctx, p))

		retrieved, err := client.GetProcedure(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Intake v2", retrieved.Name)
		assert.GreaterOrEqual(t, retrieved.UpdatedAtMs, before)
	})

	t.Run("unknown procedure returns ErrNotFound", func(t *testing.T) {
		ghost := &Procedure{ID: uuid.New().String(), OrganizationID: "org-1", Name: "Ghost"}
		err := client.UpdateProcedure(ctx, ghost)
		assert.True(t, IsNotFound(err))
	})
}

func TestCreateDeliverable(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("defaults status to active and indexes by subject kind", func(t *testing.T) {
		d := &Deliverable{
			OrganizationID:    "org-1",
			Name:              "Welcome Email",
			SubjectKind:       "beneficiary",
			Handler:           "send-email",
			RequiredCardSlugs: []string{"email"},
		}
		require.NoError(t, client.CreateDeliverable(ctx, d))
		assert.Equal(t, DeliverableStatusActive, d.Status)

		listed, err := client.ListDeliverablesBySubjectKind(ctx, "org-1", "beneficiary")
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, d.ID, listed[0].ID)
	})

	t.Run("round-trips schedule", func(t *testing.T) {
		d := &Deliverable{
			OrganizationID: "org-1",
			Name:           "Weekly Digest",
			SubjectKind:    "household",
			Handler:        "digest",
			Schedule: &Schedule{
				TimeOfDayAfter: "09:00",
				DaysOfWeek:     []int{1, 3, 5},
			},
		}
		require.NoError(t, client.CreateDeliverable(ctx, d))

		retrieved, err := client.GetDeliverable(ctx, d.ID)
		require.NoError(t, err)
		require.NotNil(t, retrieved.Schedule)
		assert.Equal(t, "09:00", retrieved.Schedule.TimeOfDayAfter)
		assert.Equal(t, []int{1, 3, 5}, retrieved.Schedule.DaysOfWeek)
	})

	t.Run("rejects out-of-range schedule day", func(t *testing.T) {
		d := &Deliverable{
			OrganizationID: "org-1",
			Name:           "Bad Day",
			SubjectKind:    "household",
			Schedule:       &Schedule{DaysOfWeek: []int{7}},
		}
		err := client.CreateDeliverable(ctx, d)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "day of week out of range")
	})
}

func TestSetDeliverableStatus(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	d := &Deliverable{
		OrganizationID: "org-1",
		Name:           "Pausable",
		SubjectKind:    "beneficiary",
		Handler:        "noop",
	}
	require.NoError(t, client.CreateDeliverable(ctx, d))

	require.NoError(t, client.SetDeliverableStatus(ctx, d.ID, DeliverableStatusPaused))
	retrieved, err := client.GetDeliverable(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, DeliverableStatusPaused, retrieved.Status)

	require.NoError(t, client.SetDeliverableStatus(ctx, d.ID, DeliverableStatusActive))
	retrieved, err = client.GetDeliverable(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, DeliverableStatusActive, retrieved.Status)
}

func newTestEvaluation(deliverableID, subjectID string) *Evaluation {
	return &Evaluation{
		DeliverableID:  deliverableID,
		OrganizationID: "org-1",
		Context: EvaluationContext{
			SubjectKind: "beneficiary",
			SubjectID:   subjectID,
		},
		Variables:      map[string]any{"email": "amy@example.org"},
		ScheduledForMs: time.Now().UnixMilli(),
	}
}

func TestCreateEvaluation(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("creates pending evaluation", func(t *testing.T) {
		e := newTestEvaluation(uuid.New().String(), "subj-1")
		id, created, err := client.CreateEvaluation(ctx, e)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, e.ID, id)

		retrieved, err := client.GetEvaluation(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, EvaluationStatusPending, retrieved.Status)
		assert.Equal(t, "amy@example.org", retrieved.Variables["email"])
	})

	t.Run("second create returns existing open evaluation", func(t *testing.T) {
		deliverableID := uuid.New().String()

		first := newTestEvaluation(deliverableID, "subj-2")
		firstID, created, err := client.CreateEvaluation(ctx, first)
		require.NoError(t, err)
		require.True(t, created)

		second := newTestEvaluation(deliverableID, "subj-2")
		secondID, created, err := client.CreateEvaluation(ctx, second)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, firstID, secondID)

		evaluations, err := client.ListEvaluationsByTarget(ctx, deliverableID, "subj-2")
		require.NoError(t, err)
		assert.Len(t, evaluations, 1)
	})

	t.Run("different subjects do not share the guard", func(t *testing.T) {
		deliverableID := uuid.New().String()

		_, created, err := client.CreateEvaluation(ctx, newTestEvaluation(deliverableID, "subj-a"))
		require.NoError(t, err)
		assert.True(t, created)

		_, created, err = client.CreateEvaluation(ctx, newTestEvaluation(deliverableID, "subj-b"))
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("publishes event after creation", func(t *testing.T) {
		sub, err := client.SubscribeEvaluationEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()

		e := newTestEvaluation(uuid.New().String(), "subj-3")
		_, _, err = client.CreateEvaluation(ctx, e)
		require.NoError(t, err)

		select {
		case got := <-sub.Events():
			assert.Equal(t, e.ID, got.ID)
			assert.Equal(t, "subj-3", got.Context.SubjectID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for evaluation event")
		}
	})
}

func TestDueEvaluations(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	now := time.Now()

	past := newTestEvaluation(uuid.New().String(), "subj-1")
	past.ScheduledForMs = now.Add(-time.Hour).UnixMilli()
	_, _, err := client.CreateEvaluation(ctx, past)
	require.NoError(t, err)

	future := newTestEvaluation(uuid.New().String(), "subj-1")
	future.ScheduledForMs = now.Add(time.Hour).UnixMilli()
	_, _, err = client.CreateEvaluation(ctx, future)
	require.NoError(t, err)

	t.Run("returns only evaluations at or before now", func(t *testing.T) {
		due, err := client.DueEvaluations(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, past.ID, due[0].ID)
	})

	t.Run("filters evaluations that left pending", func(t *testing.T) {
		_, err := client.TransitionEvaluation(ctx, past.ID, func(e *Evaluation) error {
			e.Status = EvaluationStatusRunning
			e.StartedAtMs = now.UnixMilli()
			return nil
		})
		require.NoError(t, err)

		due, err := client.DueEvaluations(ctx, now, 10)
		require.NoError(t, err)
		assert.Empty(t, due)
	})
}

func TestTransitionEvaluation(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()
	deliverableID := uuid.New().String()

	t.Run("applies mutation and persists", func(t *testing.T) {
		e := newTestEvaluation(deliverableID, "subj-1")
		_, _, err := client.CreateEvaluation(ctx, e)
		require.NoError(t, err)

		result, err := client.TransitionEvaluation(ctx, e.ID, func(ev *Evaluation) error {
			ev.Status = EvaluationStatusRunning
			ev.StartedAtMs = time.Now().UnixMilli()
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, EvaluationStatusRunning, result.Status)

		retrieved, err := client.GetEvaluation(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, EvaluationStatusRunning, retrieved.Status)
		assert.NotZero(t, retrieved.StartedAtMs)
	})

	t.Run("mutation error aborts without writing", func(t *testing.T) {
		e := newTestEvaluation(uuid.New().String(), "subj-2")
		_, _, err := client.CreateEvaluation(ctx, e)
		require.NoError(t, err)

		_, err = client.TransitionEvaluation(ctx, e.ID, func(ev *Evaluation) error {
			return ErrInvalidState
		})
		assert.True(t, IsInvalidState(err))

		retrieved, err := client.GetEvaluation(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, EvaluationStatusPending, retrieved.Status)
	})

	t.Run("terminal transition releases the open guard", func(t *testing.T) {
		guardDeliverable := uuid.New().String()
		e := newTestEvaluation(guardDeliverable, "subj-3")
		_, _, err := client.CreateEvaluation(ctx, e)
		require.NoError(t, err)

		guardKey := OpenEvaluationKey("test-instance", guardDeliverable, "subj-3")
		assert.True(t, mr.Exists(guardKey))

		now := time.Now().UnixMilli()
		_, err = client.TransitionEvaluation(ctx, e.ID, func(ev *Evaluation) error {
			ev.Status = EvaluationStatusCompleted
			ev.Result = &EvaluationResult{Success: true}
			ev.CompletedAtMs = now
			return nil
		})
		require.NoError(t, err)
		assert.False(t, mr.Exists(guardKey))

		// A new evaluation for the same target can now be created.
		next := newTestEvaluation(guardDeliverable, "subj-3")
		_, created, err := client.CreateEvaluation(ctx, next)
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("completion records the deliverable for the subject", func(t *testing.T) {
		doneDeliverable := uuid.New().String()
		e := newTestEvaluation(doneDeliverable, "subj-4")
		_, _, err := client.CreateEvaluation(ctx, e)
		require.NoError(t, err)

		done, err := client.HasCompletedEvaluation(ctx, doneDeliverable, "subj-4")
		require.NoError(t, err)
		assert.False(t, done)

		_, err = client.TransitionEvaluation(ctx, e.ID, func(ev *Evaluation) error {
			ev.Status = EvaluationStatusCompleted
			ev.Result = &EvaluationResult{Success: true}
			ev.CompletedAtMs = time.Now().UnixMilli()
			return nil
		})
		require.NoError(t, err)

		done, err = client.HasCompletedEvaluation(ctx, doneDeliverable, "subj-4")
		require.NoError(t, err)
		assert.True(t, done)
	})

	t.Run("failure does not record completion", func(t *testing.T) {
		failDeliverable := uuid.New().String()
		e := newTestEvaluation(failDeliverable, "subj-5")
		_, _, err := client.CreateEvaluation(ctx, e)
		require.NoError(t, err)

		_, err = client.TransitionEvaluation(ctx, e.ID, func(ev *Evaluation) error {
			ev.Status = EvaluationStatusFailed
			ev.Result = &EvaluationResult{Success: false, Error: "boom"}
			ev.CompletedAtMs = time.Now().UnixMilli()
			return nil
		})
		require.NoError(t, err)

		done, err := client.HasCompletedEvaluation(ctx, failDeliverable, "subj-5")
		require.NoError(t, err)
		assert.False(t, done)
	})

	t.Run("unknown evaluation returns ErrNotFound", func(t *testing.T) {
		_, err := client.TransitionEvaluation(ctx, uuid.New().String(), func(ev *Evaluation) error {
			return nil
		})
		assert.True(t, IsNotFound(err))
	})
}

func TestSubjectDocuments(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("round-trips attributes and fields", func(t *testing.T) {
		err := client.PutSubjectDocument(ctx, "beneficiaries", map[string]any{
			"id":           "b-1",
			"household_id": "h-1",
			"attributes": []map[string]any{
				{"slug": "email", "value": "amy@example.org"},
			},
		})
		require.NoError(t, err)

		doc, err := client.GetSubjectDocument(ctx, "beneficiaries", "b-1")
		require.NoError(t, err)
		assert.Equal(t, "b-1", doc.ID)
		require.Len(t, doc.Attributes, 1)
		assert.Equal(t, "email", doc.Attributes[0].Slug)
		assert.Equal(t, "amy@example.org", doc.Attributes[0].Value)
		assert.Equal(t, "h-1", doc.Fields["household_id"])
	})

	t.Run("missing document returns ErrNotFound", func(t *testing.T) {
		_, err := client.GetSubjectDocument(ctx, "beneficiaries", "nope")
		assert.True(t, IsNotFound(err))
	})

	t.Run("rejects document without id", func(t *testing.T) {
		err := client.PutSubjectDocument(ctx, "beneficiaries", map[string]any{"name": "x"})
		assert.Error(t, err)
	})
}

func TestSubscribeSubjectEvents(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeSubjectEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	event := &SubjectEvent{
		OrganizationID: "org-1",
		SubjectKind:    "beneficiary",
		SubjectID:      "b-1",
		MutatedFields:  []string{"email"},
	}
	require.NoError(t, client.PublishSubjectEvent(ctx, event))

	select {
	case got := <-sub.Events():
		assert.Equal(t, "b-1", got.SubjectID)
		assert.Equal(t, []string{"email"}, got.MutatedFields)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subject event")
	}

	t.Run("close is idempotent", func(t *testing.T) {
		assert.NoError(t, sub.Close())
		assert.NoError(t, sub.Close())
	})
}

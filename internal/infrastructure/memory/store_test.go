package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/sifen-api/internal/domain"
	"github.com/jhoicas/sifen-api/internal/domain/entity"
	"github.com/jhoicas/sifen-api/internal/domain/repository"
	"github.com/jhoicas/sifen-api/internal/infrastructure/memory"
)

func newDoc(id, number string) *entity.Document {
	return &entity.Document{
		ID:            id,
		IssuerID:      "emisor-1",
		DocumentType:  1,
		Establishment: "001",
		Point:         "001",
		Number:        number,
		ControlCode:   "cdc-" + id,
		State:         entity.StateGenerated,
	}
}

func TestDocumentRepo_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Documents()

	require.NoError(t, repo.Create(ctx, newDoc("d1", "0000001")))

	got, err := repo.GetByControlCode(ctx, "cdc-d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", got.ID)

	// Las copias devueltas no comparten memoria con el store
	got.State = entity.StateAccepted
	again, err := repo.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, entity.StateGenerated, again.State)

	got.ControlCode = "otro"
	got.Observation = "aceptado: ok"
	require.NoError(t, repo.Update(ctx, got))
	again, err = repo.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, entity.StateAccepted, again.State)
	assert.Equal(t, "cdc-d1", again.ControlCode, "Update no modifica el CDC")

	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentRepo_Duplicados(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Documents()
	require.NoError(t, repo.Create(ctx, newDoc("d1", "0000001")))

	err := repo.Create(ctx, newDoc("d2", "0000001"))
	assert.ErrorIs(t, err, domain.ErrDuplicate, "misma numeración")

	exists, err := repo.ExistsNumber(ctx, "emisor-1", 1, "001", "001", "0000001")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDocumentRepo_ListByRange(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Documents()
	for i, n := range []string{"0000005", "0000001", "0000003", "0000009"} {
		require.NoError(t, repo.Create(ctx, newDoc(string(rune('a'+i)), n)))
	}

	docs, err := repo.ListByRange(ctx, "emisor-1", "001", "001", "0000002", "0000005")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "0000003", docs[0].Number)
	assert.Equal(t, "0000005", docs[1].Number)
}

func TestEventRepo_OrdenYSeq(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Events()
	at := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, &entity.DocumentEvent{ID: "e2", DocumentID: "d1", Kind: "b", OccurredAt: at.Add(time.Second)}))
	require.NoError(t, repo.Append(ctx, &entity.DocumentEvent{ID: "e1", DocumentID: "d1", Kind: "a", OccurredAt: at}))
	require.NoError(t, repo.Append(ctx, &entity.DocumentEvent{ID: "e3", DocumentID: "d1", Kind: "c", OccurredAt: at.Add(time.Second)}))

	evs, err := repo.ListByDocument(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{evs[0].Kind, evs[1].Kind, evs[2].Kind})
	assert.Less(t, evs[1].Seq, evs[2].Seq)

	err = repo.Append(ctx, &entity.DocumentEvent{ID: "e1", DocumentID: "d1", Kind: "x", OccurredAt: at})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestTxRunner_ConfirmaAtomicamente(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Documents().Create(ctx, newDoc("d1", "0000001")))
	runner := memory.NewTxRunner(store)

	err := runner.RunDocument(ctx, func(docs repository.DocumentRepository, events repository.DocumentEventRepository) error {
		doc, err := docs.GetByID(ctx, "d1")
		if err != nil {
			return err
		}
		doc.State = entity.StateSent
		if err := docs.Update(ctx, doc); err != nil {
			return err
		}
		// Lectura dentro de la transacción ve la escritura pendiente
		pending, err := docs.GetByID(ctx, "d1")
		if err != nil {
			return err
		}
		assert.Equal(t, entity.StateSent, pending.State)
		return events.Append(ctx, &entity.DocumentEvent{ID: "e1", DocumentID: "d1", Kind: entity.EventSubmit, OccurredAt: time.Now()})
	})
	require.NoError(t, err)

	doc, err := store.Documents().GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, entity.StateSent, doc.State)
	evs, err := store.Events().ListByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, evs, 1)
}

func TestTxRunner_ErrorDescartaTodo(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Documents().Create(ctx, newDoc("d1", "0000001")))
	runner := memory.NewTxRunner(store)
	boom := errors.New("boom")

	err := runner.RunDocument(ctx, func(docs repository.DocumentRepository, events repository.DocumentEventRepository) error {
		doc, _ := docs.GetByID(ctx, "d1")
		doc.State = entity.StateAccepted
		_ = docs.Update(ctx, doc)
		_ = events.Append(ctx, &entity.DocumentEvent{ID: "e1", DocumentID: "d1", Kind: "x", OccurredAt: time.Now()})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	doc, err := store.Documents().GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, entity.StateGenerated, doc.State)
	evs, _ := store.Events().ListByDocument(ctx, "d1")
	assert.Empty(t, evs)
}

func TestTimbradoRepo_GetActive(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Timbrados()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &entity.Timbrado{ID: "t1", IssuerID: "e", Number: "12345678", Establishment: "001", Point: "001", ValidFrom: from, ValidTo: from.AddDate(1, 0, 0), IsActive: true}))
	require.NoError(t, repo.Create(ctx, &entity.Timbrado{ID: "t2", IssuerID: "e", Number: "87654321", Establishment: "001", Point: "001", ValidFrom: from, ValidTo: from.AddDate(2, 0, 0), IsActive: false}))

	got, err := repo.GetActive(ctx, "e", "001", "001")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)

	_, err = repo.GetActive(ctx, "e", "002", "001")
	assert.ErrorIs(t, err, domain.ErrNoActiveTimbrado)
}

func TestIssuerRepo(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Issuers()
	require.NoError(t, repo.Create(ctx, &entity.Issuer{ID: "i1", Name: "B", RUC: "80069563", CheckDigit: "1"}))
	require.NoError(t, repo.Create(ctx, &entity.Issuer{ID: "i2", Name: "A", RUC: "80000005", CheckDigit: "6"}))
	assert.ErrorIs(t, repo.Create(ctx, &entity.Issuer{ID: "i3", RUC: "80069563"}), domain.ErrDuplicate)

	got, err := repo.GetByRUC(ctx, "80069563")
	require.NoError(t, err)
	assert.Equal(t, "i1", got.ID)

	list, err := repo.List(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A", list[0].Name)
}

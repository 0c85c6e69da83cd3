package assistants

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var assistantCols = []string{"id", "external_assistant_id", "client_id", "name", "phone_number", "is_active", "config", "created_at", "updated_at"}

func TestPostgresRepo_UpsertKeepsOwnerWhenNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(EXCLUDED.client_id, assistant_configs.client_id)")).
		WithArgs(sqlmock.AnyArg(), "a1", nil, "Intake", "", true, []byte("{}"), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(assistantCols).AddRow("id-1", "a1", "c1", "Intake", "", true, []byte("{}"), now, now))

	got, err := NewPostgresRepo(db).Upsert(context.Background(), AssistantConfig{
		ExternalAssistantID: "a1",
		Name:                "Intake",
		IsActive:            true,
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", got.Owner())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_DeleteReportsExistence(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM assistant_configs").WithArgs("a1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM assistant_configs").WithArgs("a2").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgresRepo(db)
	ok, err := repo.Delete(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(context.Background(), "a2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresRepo_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM assistant_configs WHERE external_assistant_id").
		WithArgs("zz").
		WillReturnRows(sqlmock.NewRows(assistantCols))

	_, err = NewPostgresRepo(db).Get(context.Background(), "zz")
	assert.ErrorIs(t, err, ErrNotFound)
}

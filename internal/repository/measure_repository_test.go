package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/measure-api/internal/models"
)

const (
	testCustomer = "0b7a1f9c-5a4e-4c1d-9d8e-1f2a3b4c5d6e"
	testMeasure  = "5d2c8e4a-1b3f-4a6d-8c9e-0f1a2b3c4d5e"
)

func newMeasureRepoMock(t *testing.T) (*MeasureRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewMeasureRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func measureRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"measure_read_id", "measure_uuid", "customer_code", "measure_datetime", "measure_type", "measure_value", "image_url", "has_confirmed"})
}

func TestMeasureRepositoryList(t *testing.T) {
	repo, mock, cleanup := newMeasureRepoMock(t)
	defer cleanup()

	at := time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + measureColumns + " FROM measure_read WHERE customer_code = $1 ORDER BY measure_datetime DESC, measure_read_id DESC")).
		WithArgs(testCustomer).
		WillReturnRows(measureRows().
			AddRow(2, testMeasure, testCustomer, at, "GAS", 87.5, "http://localhost/public/a.png", false).
			AddRow(1, "11111111-2222-3333-4444-555555555555", testCustomer, at.AddDate(0, -1, 0), "WATER", 12, "http://localhost/public/b.png", true))

	list, err := repo.List(context.Background(), models.MeasureFilter{CustomerCode: testCustomer})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.MeasureTypeGas, list[0].Type)
	assert.True(t, list[1].Confirmed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeasureRepositoryListByType(t *testing.T) {
	repo, mock, cleanup := newMeasureRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE customer_code = $1 AND measure_type = $2 ORDER BY")).
		WithArgs(testCustomer, "WATER").
		WillReturnRows(measureRows())

	list, err := repo.List(context.Background(), models.MeasureFilter{CustomerCode: testCustomer, Type: models.MeasureTypeWater})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeasureRepositoryExistsInMonth(t *testing.T) {
	repo, mock, cleanup := newMeasureRepoMock(t)
	defer cleanup()

	at := time.Date(2024, 5, 31, 23, 59, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM measure_read WHERE customer_code = $1 AND measure_type = $2")).
		WithArgs(testCustomer, "GAS", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsInMonth(context.Background(), testCustomer, models.MeasureTypeGas, at)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeasureRepositoryCreate(t *testing.T) {
	repo, mock, cleanup := newMeasureRepoMock(t)
	defer cleanup()

	at := time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO measure_read").
		WithArgs(testMeasure, testCustomer, at, "WATER", 451.2, "http://localhost/public/x.png", false).
		WillReturnRows(sqlmock.NewRows([]string{"measure_read_id"}).AddRow(7))

	m := &models.Measure{UUID: testMeasure, CustomerCode: testCustomer, Datetime: at, Type: models.MeasureTypeWater, Value: 451.2, ImageURL: "http://localhost/public/x.png"}
	require.NoError(t, repo.Create(context.Background(), m))
	assert.Equal(t, int64(7), m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeasureRepositoryCreateMonthTaken(t *testing.T) {
	repo, mock, cleanup := newMeasureRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO measure_read").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "measure_read_customer_type_month_key"})

	err := repo.Create(context.Background(), &models.Measure{UUID: testMeasure, CustomerCode: testCustomer, Type: models.MeasureTypeGas})
	assert.ErrorIs(t, err, models.ErrMeasureMonthTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeasureRepositoryCreateFailure(t *testing.T) {
	repo, mock, cleanup := newMeasureRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO measure_read").WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), &models.Measure{UUID: testMeasure})
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrMeasureMonthTaken)
}

func TestMeasureRepositoryFindByUUID(t *testing.T) {
	repo, mock, cleanup := newMeasureRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM measure_read WHERE measure_uuid = $1")).
		WithArgs(testMeasure).
		WillReturnRows(measureRows().AddRow(3, testMeasure, testCustomer, time.Now(), "GAS", 10, "u", false))

	m, err := repo.FindByUUID(context.Background(), testMeasure)
	require.NoError(t, err)
	assert.Equal(t, testCustomer, m.CustomerCode)

	mock.ExpectQuery(regexp.QuoteMeta("FROM measure_read WHERE measure_uuid = $1")).
		WithArgs(testCustomer).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindByUUID(context.Background(), testCustomer)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeasureRepositoryConfirm(t *testing.T) {
	repo, mock, cleanup := newMeasureRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE measure_read SET measure_value = $1, has_confirmed = TRUE WHERE measure_uuid = $2 AND has_confirmed IS FALSE")).
		WithArgs(int64(42), testMeasure).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Confirm(context.Background(), testMeasure, 42)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec("UPDATE measure_read").
		WithArgs(int64(43), testMeasure).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = repo.Confirm(context.Background(), testMeasure, 43)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

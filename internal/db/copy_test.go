package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "ingestion_log", []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"diff_log"}, []string{"player_id", "field_name"}).WillReturnResult(3)

	rows := [][]any{{"p1", "depth_chart_rank"}, {"p2", "starter_prob"}, {"p3", "injury_status"}}
	n, err := CopyFrom(context.Background(), mock, "diff_log", []string{"player_id", "field_name"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"diff_log"}, []string{"player_id"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"p1"}}
	_, err = CopyFrom(context.Background(), mock, "diff_log", []string{"player_id"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO diff_log")
	assert.NoError(t, mock.ExpectationsWereMet())
}
